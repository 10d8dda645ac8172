package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/rollcall/internal/api"
	"github.com/mcoot/rollcall/internal/config"
	"github.com/mcoot/rollcall/internal/factory"
	"github.com/mcoot/rollcall/internal/model"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if cfg.Source != "" {
		logger.Info("loaded config", slog.String("file", cfg.Source))
	} else {
		logger.Warn("config file not found, using defaults and environment")
	}
	if len(cfg.Auth.Coordinators) == 0 && cfg.Auth.TokenHash == "" {
		logger.Warn("no coordinators or API token configured, roster commands are unreachable")
	}

	app, err := factory.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", slog.Any("error", err))
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		Clock:            app.Clock,
		AuthService:      app.AuthService,
		RosterController: app.RosterController,
		Runner:           app.Runner,
		Input:            app.InputCollector,
		Presence:         app.PresenceTracker,
		History:          app.HistoryService,
		Directory:        app.Directory,
		Board:            app.Board,
		HubManager:       app.HubManager,
		Gatherer:         app.Gatherer,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	server := api.NewServer(router, serverConfig, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		return app.Reconciler.Run(gctx, app.PresenceTracker.Events())
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.HousekeepingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				app.Housekeep(gctx)
			}
		}
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", slog.Any("error", err))
	}

	if view := app.RosterController.Status(); view.State == model.RosterStateOpen {
		logger.Warn("shutting down with an open roster, it will not be saved",
			slog.Int("entries", len(view.Main)+len(view.Reserve)))
	}
	if closeErr := app.Close(); closeErr != nil {
		logger.Error("shutdown error", slog.Any("error", closeErr))
	}

	logger.Info("server stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
