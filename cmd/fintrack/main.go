package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/ledger"
	"fintrack/internal/rates"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	ctx := context.Background()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)

	store, err := factory.CreateStorage(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize ledger storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	publisher, err := factory.CreatePublisher(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err, "events", cfg.EventsBackend)
		_ = store.Cleanup()
		os.Exit(1)
	}

	rateClient, err := rates.NewClient(cfg.RatesAPIKey, cfg.RatesTimeout, rates.WithBaseURL(cfg.RatesAPIURL))
	if err != nil {
		logger.Error("Failed to initialize exchange rate client", "error", err)
		_ = publisher.Close()
		_ = store.Cleanup()
		os.Exit(1)
	}

	tracker := services.NewTracker(ledger.New(store.KV, cfg.LedgerKey), publisher, rateClient)

	// Validate already rejected unsupported currencies
	display, _ := core.ParseCurrency(cfg.DefaultCurrency)

	srv := apphttp.NewServer(":"+cfg.Port, tracker, display, apphttp.Options{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
		Logger:            logger,
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := tracker.Close(); err != nil {
			logger.Error("Event publisher close error", "error", err)
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Storage close error", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", cfg.EventsBackend,
		"default_currency", display)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
