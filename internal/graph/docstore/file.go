package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zerochrono/copilot-backend/internal/graph"
)

const DocumentFile = "graph.json"

type FileStore struct {
	path string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{path: filepath.Join(root, DocumentFile)}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*graph.Document, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: read %s: %w", s.path, err)
	}
	return decodeDocument(b)
}

func (s *FileStore) Save(ctx context.Context, doc *graph.Document) error {
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("docstore: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// CategoryCache keeps the per-category node lists next to the document.
// They are checkpoints: a read that fails for any reason yields no nodes.
type CategoryCache struct {
	dir string
}

func NewCategoryCache(dir string) *CategoryCache {
	return &CategoryCache{dir: dir}
}

func (c *CategoryCache) Path(name string) string { return filepath.Join(c.dir, name) }

func (c *CategoryCache) Load(name string) []graph.Node {
	b, err := os.ReadFile(c.Path(name))
	if err != nil {
		return []graph.Node{}
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return []graph.Node{}
	}
	nodes, _ := graph.NodesFrom(raw)
	return nodes
}

func (c *CategoryCache) Save(name string, nodes []graph.Node) error {
	if nodes == nil {
		nodes = []graph.Node{}
	}
	b, err := Encode(nodes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Path(name), b, 0o644); err != nil {
		return fmt.Errorf("docstore: write %s: %w", name, err)
	}
	return nil
}
