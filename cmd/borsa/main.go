package main

import (
	"context"
	"os"
	"time"

	"borsa/internal/backend"
	"borsa/internal/cli"
	apphttp "borsa/internal/http"
	"borsa/internal/log"
	"borsa/internal/state"
	"borsa/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}

	store := state.New(result.Backend, logger.WithComponent(log.ComponentState))

	// First load, best effort: with the backend down the UI serves a
	// holding page and retries on the next request.
	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.APITimeout)
	if err := store.RefreshAll(startCtx); err != nil {
		logger.Warn("Initial data load failed", log.FieldError, err.Error())
	}
	cancelStart()

	srv := apphttp.NewServer(cfg, store, logger.WithComponent(log.ComponentHTTP))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err.Error())
			}
		}
	})

	go worker.NewRefresher(store, cfg.RefreshInterval).Run(ctx)

	logger.Info("Starting borsa server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"refresh_interval", cfg.RefreshInterval.String())
	if err := srv.Start(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
