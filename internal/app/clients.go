package app

import (
	"context"
	"fmt"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph/docstore"
	"github.com/zerochrono/copilot-backend/internal/inference/gateway"
	"github.com/zerochrono/copilot-backend/internal/inference/router"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/platform/neo4jdb"
)

type Clients struct {
	// Neo4j is nil when no credentials are configured or the server could
	// not be reached at startup.
	Neo4j   *neo4jdb.Client
	Docs    docstore.Store
	Gateway *gateway.Gateway
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Completion
	eng, err := router.NewEngine(cfg.Completion)
	if err != nil {
		return Clients{}, fmt.Errorf("init completion engine: %w", err)
	}
	gw, err := gateway.New(eng, cfg.Completion, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init gateway: %w", err)
	}
	gw.WithMetrics(metrics)

	// Graph document store
	docs, err := docstore.Open(ctx, cfg.Graph, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init graph document store: %w", err)
	}

	// Neo4j
	n4j, err := neo4jdb.New(cfg.Neo4j, log)
	switch {
	case err != nil:
		log.Warn("neo4j driver init failed, graph retrieval disabled", "error", err)
		n4j = nil
	case n4j == nil:
		log.Info("neo4j credentials not set, graph retrieval disabled")
	}

	return Clients{Neo4j: n4j, Docs: docs, Gateway: gw}, nil
}

func (c Clients) Close(ctx context.Context, log *logger.Logger) {
	if c.Docs != nil {
		if err := c.Docs.Close(); err != nil {
			log.Warn("close graph document store", "error", err)
		}
	}
	if err := c.Neo4j.Close(ctx); err != nil {
		log.Warn("close neo4j driver", "error", err)
	}
}
