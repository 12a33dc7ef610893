package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/license"
	"github.com/groupgate/groupgate/internal/metrics"
	"github.com/groupgate/groupgate/internal/ratelimit"
	"github.com/groupgate/groupgate/internal/reaper"
	"github.com/groupgate/groupgate/internal/server"
	"github.com/groupgate/groupgate/internal/service"
)

const banner = `
   __ _ _ __ ___  _   _ _ __   __ _  __ _| |_ ___
  / _` + "`" + ` | '__/ _ \| | | | '_ \ / _` + "`" + ` |/ _` + "`" + ` | __/ _ \
 | (_| | | | (_) | |_| | |_) | (_| | (_| | ||  __/
  \__, |_|  \___/ \__,_| .__/ \__, |\__,_|\__\___|
  |___/                |_|    |___/
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the groupgate API server",
		Long:  "Start the HTTP server that exposes the redemption, verification, and admin APIs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	// Set up logger
	logLevel := slog.LevelInfo
	if dev || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)

	metrics.Init()

	// 1. Open the store
	driver := cfg.Store.Driver
	dsn := cfg.Store.DSN
	if driver == "" || driver == "sqlite" {
		dsn = cfg.Store.DataDir
		if dsn == "" {
			dsn = resolveDataDir()
		}
	}
	store, err := config.NewStore(driver, dsn)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	logger.Info("store initialized", "driver", driver)

	// 2. Licensing API client
	licClient := license.NewClient(cfg.License.BaseURL,
		durationOrDefault(cfg.License.Timeout, 30*time.Second), logger)

	// 3. Rate limiter for the redemption path
	limiter := ratelimit.New(ratelimit.Window)

	// 4. Services
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = viper.GetString("auth.jwt_secret")
	}
	if jwtSecret == "" {
		jwtSecret = "groupgate-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not set, using insecure development default")
	}
	authSvc := service.NewAuthService(store, jwtSecret)
	products := service.NewProductService(store, service.DefaultCacheTTL, logger)
	redeemSvc := service.NewRedeemService(store, licClient, limiter, products,
		durationOrDefault(cfg.Redeem.WhitelistDuration, 720*time.Hour), logger)
	verifySvc := service.NewVerifyService(store, logger)

	// 5. First-run check
	hasAdmin, err := store.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: groupgate admin create")
	}

	// 6. Retention reaper
	var r *reaper.Reaper
	if cfg.Retention.Enabled {
		r = reaper.New(store,
			durationOrDefault(cfg.Retention.Interval, time.Hour),
			durationOrDefault(cfg.Retention.Grace, 720*time.Hour),
			logger)
		r.Start()
		defer r.Shutdown()
	}

	// 7. Build and start HTTP server
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: durationOrDefault(cfg.Server.ShutdownTimeout, 30*time.Second),
		CORSOrigins:     cfg.Server.CORSOrigins,
		VerifyPerMinute: cfg.Limits.VerifyPerMinute,
		JWTExpiry:       durationOrDefault(cfg.Auth.JWTExpiry, 24*time.Hour),
	}
	srv := server.New(srvCfg, store, authSvc, products, redeemSvc, verifySvc, logger)

	fmt.Printf("→ groupgate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Redeem:  http://%s:%d/api/v1/redeem\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Verify:  http://%s:%d/api/v1/whitelist/verify\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:  http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}

// loadConfig reads the YAML configuration file, falling back to defaults
// when none exists.
func loadConfig() (*config.YAMLConfig, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("groupgate.yaml"); err == nil {
			path = "groupgate.yaml"
		}
	}
	if path == "" {
		return config.DefaultYAMLConfig(), nil
	}
	return config.LoadYAMLConfig(path)
}
