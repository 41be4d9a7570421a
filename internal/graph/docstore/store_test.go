package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

func sampleDoc() *graph.Document {
	v := 0.9
	return &graph.Document{
		Nodes: []graph.Node{
			{Title: "Hypertension", Body: "BP > 140/90", Tags: "diagnosis"},
			{Title: "Lisinopril", Body: "ACE inhibitor", Tags: "medication"},
		},
		Links: []graph.Link{
			{Source: "Hypertension", SourceType: "diagnosis", Target: "Lisinopril", TargetType: "medication", Description: "first line", Value: &v},
			{Source: "", Target: "Lisinopril"},
		},
	}
}

func assertSameDoc(t *testing.T, got, want *graph.Document) {
	t.Helper()
	if len(got.Nodes) != len(want.Nodes) || len(got.Links) != len(want.Links) {
		t.Fatalf("got nodes=%d links=%d want nodes=%d links=%d", len(got.Nodes), len(got.Links), len(want.Nodes), len(want.Links))
	}
	for i := range want.Nodes {
		if got.Nodes[i] != want.Nodes[i] {
			t.Fatalf("node %d got=%+v want=%+v", i, got.Nodes[i], want.Nodes[i])
		}
	}
	if got.Links[0].Value == nil || *got.Links[0].Value != 0.9 {
		t.Fatalf("link value lost: %+v", got.Links[0])
	}
	if got.Links[1].Value != nil {
		t.Fatalf("absent value should stay absent: %+v", got.Links[1])
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Save(ctx, sampleDoc()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "graph.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(raw), "{\n  \"Nodes\": [\n    {\n      \"title\": \"Hypertension\"") {
		t.Fatalf("expected pretty two-space JSON, got:\n%s", raw)
	}
	if !strings.Contains(string(raw), "BP > 140/90") {
		t.Fatalf("HTML characters should not be escaped:\n%s", raw)
	}
	if strings.Count(string(raw), "\"value\"") != 1 {
		t.Fatalf("absent value should be omitted:\n%s", raw)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameDoc(t, got, sampleDoc())
}

func TestFileStoreEmptyDocumentShape(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := s.Save(context.Background(), &graph.Document{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(s.Path())
	if string(raw) != "{\n  \"Nodes\": [],\n  \"Links\": []\n}" {
		t.Fatalf("got=%q", raw)
	}
	if err := s.Save(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil document")
	}
}

func TestCategoryCache(t *testing.T) {
	dir := t.TempDir()
	c := NewCategoryCache(dir)

	if got := c.Load("diagnoses.json"); len(got) != 0 {
		t.Fatalf("missing cache should be empty, got %+v", got)
	}

	if err := os.WriteFile(c.Path("labs.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := c.Load("labs.json"); len(got) != 0 {
		t.Fatalf("corrupt cache should be empty, got %+v", got)
	}

	nodes := []graph.Node{{Title: "CBC", Body: "blood count", Tags: "lab"}}
	if err := c.Save("labs.json", nodes); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := c.Load("labs.json")
	if len(got) != 1 || got[0] != nodes[0] {
		t.Fatalf("got=%+v", got)
	}

	// Older caches may carry untitled entries; they are dropped on load.
	if err := os.WriteFile(c.Path("medications.json"), []byte(`[{"title":" Aspirin "},{"body":"x"}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got = c.Load("medications.json")
	if len(got) != 1 || got[0].Title != "Aspirin" {
		t.Fatalf("got=%+v", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQL("sqlite", filepath.Join(t.TempDir(), "graph.db"), logger.Nop())
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") || strings.Contains(err.Error(), "requires cgo") {
			t.Skipf("sqlite unavailable: %v", err)
		}
		t.Fatalf("OpenSQL: %v", err)
	}
	defer s.Close()

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Save(ctx, &graph.Document{Nodes: []graph.Node{{Title: "old"}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, sampleDoc()); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameDoc(t, got, sampleDoc())
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenSQL("postgres", dsn, logger.Nop())
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	defer s.Close()
	if err := s.Save(ctx, sampleDoc()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameDoc(t, got, sampleDoc())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	key := "copilot:test:graph:" + strings.ReplaceAll(t.Name(), "/", "_")
	s, err := OpenRedis(ctx, url, key, logger.Nop())
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer func() {
		_ = s.rdb.Del(ctx, key).Err()
		_ = s.Close()
	}()

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Save(ctx, sampleDoc()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameDoc(t, got, sampleDoc())
}

func TestOpenRejectsUnknownStore(t *testing.T) {
	if _, err := Open(context.Background(), configWithStore("etcd"), logger.Nop()); err == nil {
		t.Fatalf("expected error")
	}
	s, err := Open(context.Background(), configWithStore("file"), logger.Nop())
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("got %T", s)
	}
}

func configWithStore(kind string) config.GraphConfig {
	return config.GraphConfig{Root: os.TempDir(), Store: kind}
}
