// Package docstore persists the graph document snapshot. Every backend reads
// and writes the document whole; there is no locking and the last writer wins.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

var ErrNotFound = errors.New("docstore: graph document not found")

type Store interface {
	Load(ctx context.Context) (*graph.Document, error)
	Save(ctx context.Context, doc *graph.Document) error
	Close() error
}

// Open returns the backend named by cfg.Store.
func Open(ctx context.Context, cfg config.GraphConfig, log *logger.Logger) (Store, error) {
	switch cfg.Store {
	case "", "file":
		return NewFileStore(cfg.Root), nil
	case "sqlite", "postgres":
		return OpenSQL(cfg.Store, cfg.StoreDSN, log)
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL, cfg.RedisKey, log)
	default:
		return nil, fmt.Errorf("docstore: unsupported store %q", cfg.Store)
	}
}

// Encode renders v as two-space indented JSON without HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encodeDocument(doc *graph.Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("docstore: nil document")
	}
	out := *doc
	if out.Nodes == nil {
		out.Nodes = []graph.Node{}
	}
	if out.Links == nil {
		out.Links = []graph.Link{}
	}
	return Encode(out)
}

func decodeDocument(b []byte) (*graph.Document, error) {
	var doc graph.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("docstore: decode document: %w", err)
	}
	return &doc, nil
}
