package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

// RedisStore keeps the document as one JSON string value.
type RedisStore struct {
	rdb *goredis.Client
	key string
	log *logger.Logger
}

func OpenRedis(ctx context.Context, url, key string, log *logger.Logger) (*RedisStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts, err := goredis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("docstore: redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("docstore: redis ping: %w", err)
	}
	return NewRedisStore(rdb, key, log), nil
}

func NewRedisStore(rdb *goredis.Client, key string, log *logger.Logger) *RedisStore {
	if strings.TrimSpace(key) == "" {
		key = "copilot:graph:document"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisStore{rdb: rdb, key: key, log: log.With("service", "GraphDocumentRedisStore")}
}

func (s *RedisStore) Load(ctx context.Context) (*graph.Document, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: redis get: %w", err)
	}
	return decodeDocument(b)
}

func (s *RedisStore) Save(ctx context.Context, doc *graph.Document) error {
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("docstore: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
