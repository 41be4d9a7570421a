package app

import (
	"fmt"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph/build"
	"github.com/zerochrono/copilot-backend/internal/graph/neo4jsync"
	"github.com/zerochrono/copilot-backend/internal/graphrag"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/services"
)

type Services struct {
	Builder *build.Builder
	// Syncer and GraphRAG are nil without a Neo4j client.
	Syncer   *neo4jsync.Syncer
	GraphRAG *graphrag.Engine
	Copilot  services.CopilotService
}

func wireServices(log *logger.Logger, cfg *config.Config, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var out Services
	builder, err := build.New(cfg.Graph, clients.Gateway, clients.Docs, log)
	if err != nil {
		return Services{}, fmt.Errorf("init graph builder: %w", err)
	}
	out.Builder = builder.WithMetrics(metrics)

	var rag services.Retriever
	if clients.Neo4j != nil {
		out.Syncer = neo4jsync.New(clients.Neo4j, log)
		if cfg.Graph.SyncNeo4j {
			out.Builder.WithSyncer(out.Syncer)
		}
		engine, err := graphrag.New(graphrag.NewNeo4jStore(clients.Neo4j), cfg.Retrieval, log)
		if err != nil {
			return Services{}, fmt.Errorf("init graph retrieval: %w", err)
		}
		out.GraphRAG = engine.WithMetrics(metrics)
		rag = out.GraphRAG
	}

	out.Copilot = services.NewCopilotService(log, clients.Gateway, out.Builder, rag)
	return out, nil
}
