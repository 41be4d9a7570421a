package neo4jdb

import (
	"context"
	"testing"
	"time"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

func TestResolveCredentials(t *testing.T) {
	cases := []struct {
		name string
		in   config.Neo4jConfig
		want Credentials
	}{
		{
			name: "explicit",
			in:   config.Neo4jConfig{URI: "bolt://db:7687", User: "neo4j", Password: "pw"},
			want: Credentials{URI: "bolt://db:7687", User: "neo4j", Password: "pw"},
		},
		{
			name: "auth slash",
			in:   config.Neo4jConfig{URI: "bolt://db:7687", User: "neo4j", Auth: "neo4j/s3cret/with/slash"},
			want: Credentials{URI: "bolt://db:7687", User: "neo4j", Password: "s3cret/with/slash"},
		},
		{
			name: "auth colon fills empty user",
			in:   config.Neo4jConfig{URI: "bolt://db:7687", Auth: "admin:pw:x"},
			want: Credentials{URI: "bolt://db:7687", User: "admin", Password: "pw:x"},
		},
		{
			name: "credentials in uri",
			in:   config.Neo4jConfig{URI: "bolt://alice:pa55@db:7687", User: "neo4j"},
			want: Credentials{URI: "bolt://db:7687", User: "alice", Password: "pa55"},
		},
		{
			name: "explicit password keeps uri user stripped",
			in:   config.Neo4jConfig{URI: "neo4j://alice:pa55@db:7687", User: "bob", Password: "pw"},
			want: Credentials{URI: "neo4j://db:7687", User: "bob", Password: "pw"},
		},
		{
			name: "defaults",
			in:   config.Neo4jConfig{},
			want: Credentials{URI: "bolt://localhost:7687"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveCredentials(tc.in)
			if got != tc.want {
				t.Fatalf("got=%+v want=%+v", got, tc.want)
			}
		})
	}
}

func TestNewWithoutPasswordIsDisabled(t *testing.T) {
	c, err := New(config.Neo4jConfig{URI: "bolt://db:7687", User: "neo4j"}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil client when no password is configured")
	}
}

func TestNewRequiresLogger(t *testing.T) {
	if _, err := New(config.Neo4jConfig{}, nil); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestNewKeepsClientWhenServerUnreachable(t *testing.T) {
	cases := []struct {
		name       string
		in         config.Neo4jConfig
		wantClient bool
	}{
		{name: "no credentials", in: config.Neo4jConfig{URI: "bolt://127.0.0.1:1"}},
		{
			name:       "closed port",
			in:         config.Neo4jConfig{URI: "bolt://127.0.0.1:1", User: "neo4j", Password: "secret", Timeout: config.Duration{Duration: 500 * time.Millisecond}},
			wantClient: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.in, logger.Nop())
			if err != nil {
				t.Fatalf("New: got=%v want=nil", err)
			}
			if got := c != nil; got != tc.wantClient {
				t.Fatalf("client got=%v want=%v", got, tc.wantClient)
			}
			if c != nil {
				if c.Driver == nil {
					t.Fatalf("driver got=nil want=non-nil")
				}
				_ = c.Close(context.Background())
			}
		})
	}
}
