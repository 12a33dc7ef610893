package cli

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/groupgate/groupgate/internal/config"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// GROUPGATE_DATA_DIR env var, or ~/.groupgate as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("GROUPGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.groupgate"
}

// openStore opens the configured persistence backend. CLI subcommands share
// the server's store settings so they always operate on the same data.
func openStore() (*config.Store, error) {
	driver := viper.GetString("store.driver")
	dsn := viper.GetString("store.dsn")
	if driver == "" || driver == "sqlite" {
		dsn = viper.GetString("store.data_dir")
		if dsn == "" {
			dsn = resolveDataDir()
		}
	}
	return config.NewStore(driver, dsn)
}

// durationOrDefault parses a duration string, falling back to def when the
// string is empty or malformed.
func durationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
