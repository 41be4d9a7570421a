package graphrag

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/zerochrono/copilot-backend/internal/platform/neo4jdb"
)

// Record is one result row keyed by column name.
type Record map[string]any

// Session runs cypher statements; callers close it when done.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error)
	Close(ctx context.Context) error
}

// Store hands out sessions, one per retrieval call.
type Store interface {
	Session(ctx context.Context) (Session, error)
}

type neo4jStore struct {
	client *neo4jdb.Client
}

// NewNeo4jStore adapts a neo4jdb client. Sessions are opened in write mode
// since retrieval may create its full-text indexes.
func NewNeo4jStore(client *neo4jdb.Client) Store {
	return &neo4jStore{client: client}
}

func (s *neo4jStore) Session(ctx context.Context) (Session, error) {
	if s.client == nil || s.client.Driver == nil {
		return nil, errors.New("graphrag: neo4j client not configured")
	}
	return &neo4jSession{s: s.client.NewSession(ctx, neo4j.AccessModeWrite)}, nil
}

type neo4jSession struct {
	s neo4j.SessionWithContext
}

func (n *neo4jSession) Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	res, err := n.s.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	recs, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, Record(r.AsMap()))
	}
	return out, nil
}

func (n *neo4jSession) Close(ctx context.Context) error {
	return n.s.Close(ctx)
}
