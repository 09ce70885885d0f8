// Package app wires a Config into a running bridge.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"touchline/internal/config"
	"touchline/internal/engine"
	"touchline/internal/server"
	"touchline/internal/simclient"
)

// App holds the shared engine, the HTTP handler in front of it and the
// simulation client both read from.
type App struct {
	Config  *config.Config
	Engine  *engine.Engine
	Sim     *simclient.Client
	Handler http.Handler
	Logger  *slog.Logger
}

// Build validates cfg and assembles the engine and HTTP handler. Nothing is
// started until Start.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	sim := simclient.New(cfg.Simulation.BaseURL, cfg.Simulation.Timeout)
	e := engine.New(cfg, sim, logger)
	handler, err := server.New(server.Config{
		Engine:            e,
		Game:              sim,
		BasePath:          cfg.Server.BasePath,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		StreamBuffer:      cfg.Bridge.StreamBuffer,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Engine: e, Sim: sim, Handler: handler, Logger: logger}, nil
}

// Start launches the background workers (snapshot refresher, webhook
// forwarder). They stop when ctx is done.
func (a *App) Start(ctx context.Context) {
	if f := server.StartWebhookForwarder(ctx, a.Engine.Events, a.Config.Webhooks, a.Logger); f != nil {
		a.Logger.Info("webhook forwarding enabled", "webhooks", len(f.Webhooks))
	}
	if a.Config.Simulation.RefreshInterval > 0 {
		a.Logger.Info("simulation refresher started", "interval", a.Config.Simulation.RefreshInterval.String())
		go a.Engine.Run(ctx)
	}
}
