package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level groupgate configuration file.
type YAMLConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	License   LicenseConfig   `yaml:"license"`
	Limits    LimitsConfig    `yaml:"limits"`
	Redeem    RedeemConfig    `yaml:"redeem"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver  string `yaml:"driver"`   // sqlite, postgres, mysql
	DSN     string `yaml:"dsn"`      // postgres/mysql connection string
	DataDir string `yaml:"data_dir"` // sqlite data directory
}

// LicenseConfig controls the outbound licensing API client.
type LicenseConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// LimitsConfig controls rate limiting ceilings, in requests per minute.
type LimitsConfig struct {
	VerifyPerMinute int `yaml:"verify_per_minute"` // public endpoint, per IP
	RedeemPerMinute int `yaml:"redeem_per_minute"` // default per API key
}

// RedeemConfig controls redemption policy.
type RedeemConfig struct {
	WhitelistDuration string `yaml:"whitelist_duration"`
}

// RetentionConfig controls purging of long-expired whitelist entries.
type RetentionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Grace    string `yaml:"grace"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"*"},
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		License: LicenseConfig{
			BaseURL: "https://payhip.com/api/v1",
			Timeout: "30s",
		},
		Limits: LimitsConfig{
			VerifyPerMinute: 60,
			RedeemPerMinute: 120,
		},
		Redeem: RedeemConfig{
			WhitelistDuration: "720h",
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Interval: "1h",
			Grace:    "720h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
