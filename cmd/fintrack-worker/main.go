package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)

	initCtx := context.Background()
	store, err := factory.CreateStorage(initCtx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize ledger storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Cleanup()

	mirror, err := factory.CreateMirror(initCtx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize ledger mirror", "error", err)
		os.Exit(1)
	}

	var source backend.EventSource
	if backendConfig.Events != backend.NoEvents {
		source, err = factory.CreateEventSource(initCtx, backendConfig)
		if err != nil {
			logger.Error("Failed to initialize event consumer", "error", err, "events", cfg.EventsBackend)
			os.Exit(1)
		}
		defer source.Close()
	} else {
		logger.Info("No events backend configured, relying on periodic mirror only",
			"interval", cfg.MirrorInterval)
	}

	mirrorWorker := worker.NewMirrorWorker(ledger.New(store.KV, cfg.LedgerKey), mirror)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mirrorWorker.Run(gctx, cfg.MirrorInterval)
	})
	if source != nil {
		g.Go(func() error {
			return source.ConsumeLedgerEvents(gctx, mirrorWorker.HandleLedgerEvent)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker shutdown complete")
}
