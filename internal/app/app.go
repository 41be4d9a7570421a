package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/http"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/services"
)

var ErrGraphStoreUnavailable = errors.New("neo4j is not configured")

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Metrics  *observability.Metrics
	Clients  Clients
	Services Services
	Server   *http.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	log, err := logger.New(cfg.Log.Mode, logger.Options{
		Level:            cfg.Log.Level,
		DisableRedaction: !cfg.Log.RedactionEnabled,
		HashSalt:         cfg.Log.HashSalt,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.OTel)
	metrics := observability.NewMetrics(cfg.Metrics)

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	svcs, err := wireServices(log, cfg, clients, metrics)
	if err != nil {
		clients.Close(ctx, log)
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Services:     svcs,
		Server:       wireServer(log, cfg, wireHandlers(log, svcs), metrics),
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx)
}

// BuildGraph returns the stored document, or builds one when it is missing.
// force always rebuilds.
func (a *App) BuildGraph(ctx context.Context, force bool) (*graph.Document, error) {
	if force {
		return a.Services.Builder.Build(ctx)
	}
	return a.Services.Builder.EnsureGraph(ctx)
}

// SyncGraph loads the served view of the current document into Neo4j.
func (a *App) SyncGraph(ctx context.Context) (graph.View, error) {
	if a.Services.Syncer == nil {
		return graph.View{}, ErrGraphStoreUnavailable
	}
	doc, err := a.Services.Builder.EnsureGraph(ctx)
	if err != nil {
		return graph.View{}, err
	}
	view := graph.BuildView(*doc)
	if err := a.Services.Syncer.Sync(ctx, view); err != nil {
		return graph.View{}, err
	}
	return view, nil
}

func (a *App) Ask(ctx context.Context, in services.AskInput) (services.AskResult, error) {
	return a.Services.Copilot.AskGraph(ctx, in)
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Clients.Close(ctx, a.Log)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	a.Log.Sync()
}
