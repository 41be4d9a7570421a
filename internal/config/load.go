package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func (d *Duration) UnmarshalText(b []byte) error {
	dd, err := parseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dd, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

func parseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n), nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be a string like \"5s\" or an int nanoseconds: %w", err)
	}
	return dd, nil
}

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Mode:             "development",
			Level:            "debug",
			RedactionEnabled: true,
		},
		HTTP: HTTPConfig{
			Host:              "0.0.0.0",
			Port:              5001,
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   4 << 20,
			CORSAllowOrigin:   "*",
		},
		Completion: CompletionConfig{
			Engine:              "oai_http",
			BaseURL:             "https://api.cerebras.ai/v1",
			ChatCompletionsPath: "/chat/completions",
			ResponsesPath:       "/responses",
			Timeout:             Duration{Duration: 120 * time.Second},
			Model:               "gpt-oss-120b",
			Temperature:         0.7,
			MaxTokens:           4096,
			TopP:                1,
			SystemPrompt:        "You are a helpful assistant.",
			LinkTemperature:     0.35,
			LinkMaxTokens:       16384,
		},
		Neo4j: Neo4jConfig{
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			Timeout:     Duration{Duration: 10 * time.Second},
			MaxPoolSize: 50,
		},
		Graph: GraphConfig{
			Root:        ".",
			Store:       "file",
			RedisKey:    "copilot:graph:document",
			CSVMaxRows:  1000,
			CSVMaxChars: 4000,
		},
		Retrieval: RetrievalConfig{
			TopK:      6,
			NeighborK: 4,
		},
		OTel: OTelConfig{
			ServiceName: "copilot-backend",
			SampleRatio: 0.1,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

type LoadOptions struct {
	// ConfigPath points at a YAML (or JSON) file. Empty means
	// COPILOT_CONFIG_PATH, then ./config/config.yaml, then none.
	ConfigPath string
	// EnvFile is a dotenv file. Empty means ./.env when present.
	EnvFile string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

func Load() (*Config, error) {
	return LoadWith(LoadOptions{})
}

func LoadWith(opts LoadOptions) (*Config, error) {
	cfg := defaultConfig()

	environ, err := resolveEnvironment(opts)
	if err != nil {
		return nil, err
	}
	lookup := func(k string) (string, bool) {
		v, ok := environ[k]
		return v, ok
	}

	cfgPath := strings.TrimSpace(opts.ConfigPath)
	if cfgPath == "" {
		if v, ok := lookup("COPILOT_CONFIG_PATH"); ok {
			cfgPath = strings.TrimSpace(v)
		}
	}
	if cfgPath == "" {
		for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
			p := filepath.Join("config", name)
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
				break
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", cfgPath, err)
		}
	}

	applyEnvFallbacks(cfg, lookup)

	if err := env.Parse(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveEnvironment(opts LoadOptions) (map[string]string, error) {
	environ := map[string]string{}
	if opts.Environment != nil {
		for k, v := range opts.Environment {
			environ[k] = v
		}
	} else {
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i > 0 {
				environ[kv[:i]] = kv[i+1:]
			}
		}
	}

	envFile := strings.TrimSpace(opts.EnvFile)
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile == "" {
		return environ, nil
	}
	vars, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", envFile, err)
	}
	// Real environment wins over the dotenv file.
	for k, v := range vars {
		if _, exists := environ[k]; !exists {
			environ[k] = v
		}
	}
	return environ, nil
}

// applyEnvFallbacks handles the secondary variable names older deployments
// still set. The primary names are applied afterwards by env.Parse and win.
func applyEnvFallbacks(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("OPENAI_API_KEY"); ok && strings.TrimSpace(v) != "" {
		cfg.Completion.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup("MODEL"); ok && strings.TrimSpace(v) != "" {
		cfg.Completion.Model = strings.TrimSpace(v)
	}
	if v, ok := lookup("CEREBRAS_LINK_MODEL"); ok && strings.TrimSpace(v) != "" {
		cfg.Completion.LinkModel = strings.TrimSpace(v)
	}
	if v, ok := lookup("CEREBRAS_LINK_TEMPERATURE"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.Completion.LinkTemperature = f
		}
	}
	if v, ok := lookup("CEREBRAS_LINK_MAX_TOKENS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Completion.LinkMaxTokens = n
		}
	}
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Log.Mode) == "" {
		cfg.Log.Mode = "development"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 5001
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 4 << 20
	}
	if strings.TrimSpace(cfg.HTTP.CORSAllowOrigin) == "" {
		cfg.HTTP.CORSAllowOrigin = "*"
	}

	c := &cfg.Completion
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	switch c.Engine {
	case "", "oai_http", "openai_http":
		c.Engine = "oai_http"
		c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
		if c.BaseURL == "" {
			return errors.New("config: completion.base_url is required for oai_http")
		}
	case "mock":
	default:
		return fmt.Errorf("config: unsupported completion.engine %q", c.Engine)
	}
	if strings.TrimSpace(c.ChatCompletionsPath) == "" {
		c.ChatCompletionsPath = "/chat/completions"
	}
	if strings.TrimSpace(c.ResponsesPath) == "" {
		c.ResponsesPath = "/responses"
	}
	if c.Timeout.Duration <= 0 {
		c.Timeout = Duration{Duration: 120 * time.Second}
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.LinkMaxTokens <= 0 {
		c.LinkMaxTokens = 16384
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = "You are a helpful assistant."
	}

	g := &cfg.Graph
	if strings.TrimSpace(g.Root) == "" {
		g.Root = "."
	}
	if abs, err := filepath.Abs(g.Root); err == nil {
		g.Root = abs
	}
	if strings.TrimSpace(g.PromptsDir) == "" {
		g.PromptsDir = filepath.Join(g.Root, "prompts")
	}
	g.Store = strings.ToLower(strings.TrimSpace(g.Store))
	switch g.Store {
	case "", "file":
		g.Store = "file"
	case "sqlite":
		if strings.TrimSpace(g.StoreDSN) == "" {
			g.StoreDSN = filepath.Join(g.Root, "graph.db")
		}
	case "postgres":
		if strings.TrimSpace(g.StoreDSN) == "" {
			return errors.New("config: graph.store_dsn is required for the postgres store")
		}
	case "redis":
		if strings.TrimSpace(g.RedisURL) == "" {
			return errors.New("config: graph.redis_url is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unsupported graph.store %q", g.Store)
	}
	if strings.TrimSpace(g.RedisKey) == "" {
		g.RedisKey = "copilot:graph:document"
	}
	if g.CSVMaxRows <= 0 {
		g.CSVMaxRows = 1000
	}
	if g.CSVMaxChars <= 0 {
		g.CSVMaxChars = 4000
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Retrieval.NeighborK <= 0 {
		cfg.Retrieval.NeighborK = 4
	}

	if cfg.OTel.SampleRatio < 0 {
		cfg.OTel.SampleRatio = 0
	}
	if cfg.OTel.SampleRatio > 1 {
		cfg.OTel.SampleRatio = 1
	}
	mp := strings.TrimSpace(cfg.Metrics.Path)
	if mp == "" {
		mp = "/metrics"
	}
	if !strings.HasPrefix(mp, "/") {
		mp = "/" + mp
	}
	cfg.Metrics.Path = mp
	return nil
}
