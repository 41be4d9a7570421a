package neo4jsync

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
	"github.com/zerochrono/copilot-backend/internal/platform/neo4jdb"
)

func sampleView() graph.View {
	return graph.BuildView(graph.Document{
		Nodes: []graph.Node{
			{Title: "Hypertension", Body: "BP", Tags: "diagnosis"},
			{Title: "Lisinopril", Tags: "medication"},
		},
		Links: []graph.Link{
			{Source: "Hypertension", SourceType: "diagnosis", Target: "Lisinopril", TargetType: "medication"},
			{Source: "Lisinopril", SourceType: "medication", Target: "Hyperkalemia", TargetType: "guideline", Description: "watch K"},
		},
	})
}

func TestNodeRowsGroupByLabel(t *testing.T) {
	rows := nodeRows(sampleView(), "now")
	if len(rows[graph.LabelDiagnosis]) != 1 || len(rows[graph.LabelMedication]) != 1 || len(rows[graph.LabelEntity]) != 1 {
		t.Fatalf("rows=%v", rows)
	}
	d := rows[graph.LabelDiagnosis][0]
	if d["id"] != "condition:hypertension" || d["title"] != "Hypertension" || d["body"] != "BP" || d["type"] != "Condition" {
		t.Fatalf("diagnosis row=%v", d)
	}
	stub := rows[graph.LabelEntity][0]
	if stub["body"] != "" || stub["title"] != "Hyperkalemia" {
		t.Fatalf("stub row=%v", stub)
	}
}

func TestEdgeRowsGroupByEndpointLabels(t *testing.T) {
	rows := edgeRows(sampleView(), "now")
	first := rows[labelPair{src: graph.LabelDiagnosis, dst: graph.LabelMedication}]
	if len(first) != 1 || first[0]["edge_id"] != "edge-0" || first[0]["weight"] != 0.8 || first[0]["type"] != "prescribed" {
		t.Fatalf("rows=%v", first)
	}
	second := rows[labelPair{src: graph.LabelMedication, dst: graph.LabelEntity}]
	if len(second) != 1 || second[0]["description"] != "watch K" {
		t.Fatalf("rows=%v", second)
	}
}

func TestEdgeRowsSkipUnknownEndpoints(t *testing.T) {
	v := graph.View{Edges: []graph.Edge{{ID: "edge-0", Source: "a", Target: "b"}}}
	if rows := edgeRows(v, "now"); len(rows) != 0 {
		t.Fatalf("rows=%v", rows)
	}
}

func TestSyncWithoutClient(t *testing.T) {
	if err := New(nil, logger.Nop()).Sync(context.Background(), sampleView()); err == nil {
		t.Fatalf("expected error without client")
	}
}

func TestSyncNeo4j(t *testing.T) {
	uri := os.Getenv("TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("TEST_NEO4J_URI not set")
	}
	client, err := neo4jdb.New(config.Neo4jConfig{
		URI:      uri,
		User:     os.Getenv("TEST_NEO4J_USER"),
		Password: os.Getenv("TEST_NEO4J_PASSWORD"),
		Auth:     os.Getenv("TEST_NEO4J_AUTH"),
	}, logger.Nop())
	if err != nil {
		t.Fatalf("neo4j: %v", err)
	}
	if client == nil {
		t.Skip("neo4j credentials not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer client.Close(ctx)

	if err := New(client, logger.Nop()).Sync(ctx, sampleView()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}
