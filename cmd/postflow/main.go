package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/postflow/postflow-go/internal/config"
	"github.com/postflow/postflow-go/internal/gateway"
	"github.com/postflow/postflow-go/internal/httpapi"
	"github.com/postflow/postflow-go/internal/logs"
	"github.com/postflow/postflow-go/internal/oauth"
	"github.com/postflow/postflow-go/internal/observability"
	"github.com/postflow/postflow-go/internal/publish"
	"github.com/postflow/postflow-go/internal/storage"
)

var (
	configFile string
	dataDir    string
	listen     string
	logLevel   string
	logToFile  bool

	version = "v0.1.0" // This will be injected by -ldflags during build
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "postflow",
		Short:   "Postflow - social account linking and publishing through a JSON-RPC tool gateway",
		Version: version,
		RunE:    runServer,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory path (default: ~/.postflow)")
	rootCmd.PersistentFlags().StringVarP(&listen, "listen", "l", "", "Listen address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", false, "Enable logging to a rotated file in the data directory")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Command-line flags override file settings
	if cfg.Logging == nil {
		cfg.Logging = config.DefaultConfig().Logging
	}
	if cmd.Flags().Changed("log-level") || cfg.Logging.Level == "" {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("log-to-file") {
		cfg.Logging.EnableFile = logToFile
	}
	if listen != "" {
		cfg.Listen = listen
	}

	logger, err := logs.SetupLogger(cfg.Logging, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	sugar.Infow("Starting postflow",
		"version", version,
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
		"gateway_url", cfg.Gateway.URL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetricsManager(sugar)
	tracing, err := observability.NewTracingManager(sugar, *cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}

	db, err := storage.NewBoltDB(cfg.DataDir, sugar)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			sugar.Errorw("Failed to close storage", "error", err)
		}
	}()

	go db.RunPendingSweeper(ctx, cfg.SweepInterval())

	gw := gateway.NewClient(cfg.Gateway, sugar)
	gw.SetObserver(metrics)
	gw.SetTracer(tracing)

	// Warm the tool catalog. Startup does not depend on the gateway being up.
	warmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if _, err := gw.Discover(warmCtx, false); err != nil {
		sugar.Warnw("Tool catalog discovery failed at startup; will retry on demand", "error", err)
	}
	cancel()

	flows := oauth.NewService(gw, db, cfg.PendingAuthTTL(), sugar, metrics)
	flows.SetTracer(tracing)
	publisher := publish.NewPublisher(gw, db, sugar)
	api := httpapi.NewServer(flows, publisher, db, cfg.FrontendURL, sugar, metrics, tracing)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetUptime(startTime)
				if count, err := db.CountPending(); err == nil {
					metrics.SetPendingAuthorizations(count)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("HTTP server listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		sugar.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("HTTP server shutdown failed", "error", err)
	}
	if err := tracing.Close(shutdownCtx); err != nil {
		sugar.Errorw("Tracing shutdown failed", "error", err)
	}

	sugar.Info("Shutdown complete")
	return nil
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
		}
	}
	return cfg, nil
}
