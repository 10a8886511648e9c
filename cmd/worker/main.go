package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/netswatch/internal/bootstrap"
	"github.com/OFFIS-RIT/netswatch/internal/config"
	"github.com/OFFIS-RIT/netswatch/internal/queue"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/logger/console"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{})).Fatal("Failed to load configuration", "err", err)
	}

	log := logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Prefix: "worker",
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Rabbit.Enabled() {
		log.Fatal("RABBITMQ_HOST is required for the worker")
	}

	deps, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialise", "err", err)
	}
	defer deps.Close()

	handler, err := queue.NewHandler(queue.NewHandlerParams{
		Runner:    deps.Syncer,
		Publisher: deps.Channel,
		Logger:    log,
	})
	if err != nil {
		log.Fatal("Failed to create queue handler", "err", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Consume(gctx, deps.Channel, handler)
	})
	if cfg.SyncEnabled {
		g.Go(func() error {
			return deps.Syncer.Loop(gctx, cfg.Loop())
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", "err", err)
		deps.Close()
		os.Exit(1)
	}
	log.Info("Shutdown signal received, exiting...")
}
