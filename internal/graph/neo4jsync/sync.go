// Package neo4jsync loads the served graph view into Neo4j so retrieval can
// search it.
package neo4jsync

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/platform/neo4jdb"
)

type Syncer struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func New(client *neo4jdb.Client, log *logger.Logger) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{client: client, log: log.With("component", "Neo4jSync")}
}

// labelPair groups edges whose endpoints carry the same labels, so MATCH can
// use the per-label id constraint.
type labelPair struct {
	src string
	dst string
}

// Sync upserts every node of view by id and every edge as ASSOCIATED_WITH,
// keyed by edge_id. Nothing is deleted.
func (s *Syncer) Sync(ctx context.Context, view graph.View) error {
	if s == nil || s.client == nil || s.client.Driver == nil {
		return errors.New("neo4jsync: neo4j client not configured")
	}
	ctx, span := otel.Tracer("copilot/graph/neo4jsync").Start(ctx, "neo4jsync.Sync")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.nodes", len(view.Nodes)),
		attribute.Int("graph.edges", len(view.Edges)),
	)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	nodes := nodeRows(view, now)
	edges := edgeRows(view, now)

	session := s.client.NewSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Best-effort schema init.
	for _, label := range graph.StoreLabels {
		q := "CREATE CONSTRAINT " + constraintName(label) + " IF NOT EXISTS FOR (n:" + label + ") REQUIRE n.id IS UNIQUE"
		if res, err := session.Run(ctx, q, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "label", label, "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, label := range sortedKeys(nodes) {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (x:`+label+` {id: n.id})
SET x += n
`, map[string]any{"nodes": nodes[label]})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		pairs := make([]labelPair, 0, len(edges))
		for p := range edges {
			pairs = append(pairs, p)
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].src != pairs[j].src {
				return pairs[i].src < pairs[j].src
			}
			return pairs[i].dst < pairs[j].dst
		})
		for _, p := range pairs {
			res, err := tx.Run(ctx, `
UNWIND $edges AS e
MATCH (a:`+p.src+` {id: e.source})
MATCH (b:`+p.dst+` {id: e.target})
MERGE (a)-[r:ASSOCIATED_WITH {edge_id: e.edge_id}]->(b)
SET r.type = e.type,
    r.weight = e.weight,
    r.description = e.description,
    r.synced_at = e.synced_at
`, map[string]any{"edges": edges[p]})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.log.Info("graph synced to neo4j", "nodes", len(view.Nodes), "edges", len(view.Edges))
	return nil
}

// nodeRows groups node property maps by store label.
func nodeRows(view graph.View, now string) map[string][]map[string]any {
	out := map[string][]map[string]any{}
	for _, n := range view.Nodes {
		if n.ID == "" {
			continue
		}
		body := ""
		if n.Body != nil {
			body = *n.Body
		}
		label := graph.StoreLabel(n.Type)
		out[label] = append(out[label], map[string]any{
			"id":        n.ID,
			"title":     n.Label,
			"body":      body,
			"tags":      n.Tags,
			"type":      string(n.Type),
			"synced_at": now,
		})
	}
	return out
}

// edgeRows groups relationship rows by the labels of their endpoints. Edges
// whose endpoints are not in the view are skipped.
func edgeRows(view graph.View, now string) map[labelPair][]map[string]any {
	labels := make(map[string]string, len(view.Nodes))
	for _, n := range view.Nodes {
		labels[n.ID] = graph.StoreLabel(n.Type)
	}
	out := map[labelPair][]map[string]any{}
	for _, e := range view.Edges {
		src, okSrc := labels[e.Source]
		dst, okDst := labels[e.Target]
		if !okSrc || !okDst {
			continue
		}
		p := labelPair{src: src, dst: dst}
		out[p] = append(out[p], map[string]any{
			"edge_id":     e.ID,
			"source":      e.Source,
			"target":      e.Target,
			"type":        string(e.Type),
			"weight":      e.Confidence,
			"description": e.Description,
			"synced_at":   now,
		})
	}
	return out
}

func constraintName(label string) string {
	return "copilot_" + label + "_id_unique"
}

func sortedKeys(m map[string][]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
