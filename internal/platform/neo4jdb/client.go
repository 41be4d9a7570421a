package neo4jdb

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

type Credentials struct {
	URI      string
	User     string
	Password string
}

var (
	uriCredsRe = regexp.MustCompile(`^([A-Za-z0-9+]+)://([^:@/]+):([^@]+)@(.+)$`)
	uriUserRe  = regexp.MustCompile(`^([A-Za-z0-9+]+)://[^@/]+@`)
)

// ResolveCredentials applies the deployment conventions: an explicit password
// wins, then NEO4J_AUTH ("user/password" or "user:password"), then
// credentials embedded in the URI. The returned URI never carries credentials.
func ResolveCredentials(cfg config.Neo4jConfig) Credentials {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := strings.TrimSpace(cfg.User)
	password := strings.TrimSpace(cfg.Password)

	if password == "" && strings.TrimSpace(cfg.Auth) != "" {
		auth := strings.TrimSpace(cfg.Auth)
		sep := "/"
		if strings.Contains(auth, ":") {
			sep = ":"
		}
		parts := strings.Split(auth, sep)
		if len(parts) >= 2 {
			if user == "" {
				user = parts[0]
			}
			password = strings.Join(parts[1:], sep)
		}
	}
	if password == "" {
		if m := uriCredsRe.FindStringSubmatch(uri); m != nil {
			user = m[2]
			password = m[3]
		}
	}
	uri = uriUserRe.ReplaceAllString(uri, "$1://")

	return Credentials{URI: uri, User: user, Password: password}
}

// New returns (nil, nil) when no credentials are configured; callers treat a
// nil client as "graph store unavailable". An unreachable server is not an
// error here: queries report it when they run.
func New(cfg config.Neo4jConfig, log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	creds := ResolveCredentials(cfg)
	if creds.User == "" || creds.Password == "" {
		return nil, nil
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}

	auth := neo4j.BasicAuth(creds.User, creds.Password, "")
	driver, err := neo4j.NewDriverWithContext(creds.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	c := &Client{
		Driver:   driver,
		Database: strings.TrimSpace(cfg.Database),
		log:      log.With("client", "Neo4jDB", "uri", creds.URI),
	}

	// The driver dials lazily, so a server that comes up later is still
	// picked up by the next session.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		c.log.Warn("neo4j not reachable yet, continuing", "error", err)
	}
	return c, nil
}

func (c *Client) NewSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.Database,
	})
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
