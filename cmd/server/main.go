package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/netswatch/internal/bootstrap"
	"github.com/OFFIS-RIT/netswatch/internal/config"
	"github.com/OFFIS-RIT/netswatch/internal/server"
	mid "github.com/OFFIS-RIT/netswatch/internal/server/middleware"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/logger/console"

	"github.com/MicahParks/keyfunc/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{})).Fatal("Failed to load configuration", "err", err)
	}

	log := logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Prefix: "sidecar",
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialise", "err", err)
	}
	defer deps.Close()

	app := &mid.App{
		Topology:     deps.Graph,
		Syncer:       deps.Syncer,
		MasterAPIKey: cfg.Auth.MasterAPIKey,
		Logger:       log,
	}
	if deps.Channel != nil {
		app.Queue = deps.Channel
	}
	if cfg.Auth.URL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.Auth.URL + "/jwks"})
		if err != nil {
			log.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	}
	if !cfg.Auth.Enabled() {
		log.Warn("Neither AUTH_URL nor MASTER_API_KEY set, /api/sync rejects every request")
	}

	e := server.New(app, deps.Metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, e, ":"+cfg.Port, log)
	})
	if cfg.SyncEnabled {
		g.Go(func() error {
			return deps.Syncer.Loop(gctx, cfg.Loop())
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", "err", err)
		deps.Close()
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}
