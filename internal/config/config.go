package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

type Duration struct {
	Duration time.Duration
}

type LogConfig struct {
	Mode             string `yaml:"mode" env:"LOG_MODE"`
	Level            string `yaml:"level" env:"LOG_LEVEL"`
	RedactionEnabled bool   `yaml:"redaction_enabled" env:"LOG_REDACTION_ENABLED"`
	HashSalt         string `yaml:"hash_salt" env:"LOG_HASH_SALT"`
}

type HTTPConfig struct {
	Host              string   `yaml:"host" env:"HOST"`
	Port              int      `yaml:"port" env:"PORT"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes" env:"HTTP_MAX_REQUEST_BYTES"`
	CORSAllowOrigin   string   `yaml:"cors_allow_origin" env:"CORS_ALLOW_ORIGIN"`
}

func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// CompletionConfig describes the upstream text-completion provider. The
// link-specific knobs apply only to the linker call of the graph build, which
// is larger and wants more deterministic output.
type CompletionConfig struct {
	// Engine is "oai_http" (any OpenAI-compatible server) or "mock".
	Engine string `yaml:"engine" env:"COMPLETION_ENGINE"`

	BaseURL             string   `yaml:"base_url" env:"CEREBRAS_BASE_URL"`
	APIKey              string   `yaml:"api_key" env:"CEREBRAS_API_KEY"`
	ChatCompletionsPath string   `yaml:"chat_completions_path" env:"CEREBRAS_CHAT_COMPLETIONS_PATH"`
	ResponsesPath       string   `yaml:"responses_path" env:"CEREBRAS_RESPONSES_PATH"`
	Timeout             Duration `yaml:"timeout" env:"CEREBRAS_TIMEOUT"`

	Model           string  `yaml:"model" env:"CEREBRAS_MODEL"`
	Temperature     float64 `yaml:"temperature" env:"CEREBRAS_TEMPERATURE"`
	MaxTokens       int     `yaml:"max_tokens" env:"CEREBRAS_MAX_TOKENS"`
	TopP            float64 `yaml:"top_p" env:"CEREBRAS_TOP_P"`
	ReasoningEffort string  `yaml:"reasoning_effort" env:"CEREBRAS_REASONING_EFFORT"`
	SystemPrompt    string  `yaml:"system_prompt" env:"CEREBRAS_SYSTEM_PROMPT"`

	LinkModel       string  `yaml:"link_model" env:"LINK_MODEL"`
	LinkTemperature float64 `yaml:"link_temperature" env:"LINK_TEMPERATURE"`
	LinkMaxTokens   int     `yaml:"link_max_tokens" env:"LINK_MAX_TOKENS"`
}

type Neo4jConfig struct {
	URI         string   `yaml:"uri" env:"NEO4J_URI"`
	User        string   `yaml:"user" env:"NEO4J_USER"`
	Password    string   `yaml:"password" env:"NEO4J_PASSWORD"`
	Auth        string   `yaml:"auth" env:"NEO4J_AUTH"`
	Database    string   `yaml:"database" env:"NEO4J_DATABASE"`
	Timeout     Duration `yaml:"timeout" env:"NEO4J_TIMEOUT"`
	MaxPoolSize int      `yaml:"max_pool_size" env:"NEO4J_MAX_POOL_SIZE"`
}

type GraphConfig struct {
	// Root is the project root holding the CSV sources, caches and graph.json.
	Root       string `yaml:"root" env:"GRAPH_ROOT"`
	PromptsDir string `yaml:"prompts_dir" env:"GRAPH_PROMPTS_DIR"`

	// Store selects where the graph document snapshot lives: file, sqlite,
	// postgres or redis.
	Store    string `yaml:"store" env:"GRAPH_STORE"`
	StoreDSN string `yaml:"store_dsn" env:"GRAPH_STORE_DSN"`
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	RedisKey string `yaml:"redis_key" env:"GRAPH_REDIS_KEY"`

	CSVMaxRows  int `yaml:"csv_max_rows" env:"GRAPH_CSV_MAX_ROWS"`
	CSVMaxChars int `yaml:"csv_max_chars" env:"GRAPH_CSV_MAX_CHARS"`

	SyncNeo4j bool `yaml:"sync_neo4j" env:"GRAPH_SYNC_NEO4J"`
}

type RetrievalConfig struct {
	TopK      int `yaml:"top_k" env:"GRAPH_RAG_TOP_K"`
	NeighborK int `yaml:"neighbor_k" env:"GRAPH_RAG_NEIGHBOR_K"`
}

type OTelConfig struct {
	Enabled      bool    `yaml:"enabled" env:"OTEL_ENABLED"`
	ServiceName  string  `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Endpoint     string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	SampleRatio  float64 `yaml:"sample_ratio" env:"OTEL_SAMPLER_RATIO"`
	Version      string  `yaml:"version" env:"SERVICE_VERSION"`
	ExporterKind string  `yaml:"exporter" env:"OTEL_EXPORTER"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Completion CompletionConfig `yaml:"completion"`
	Neo4j      Neo4jConfig      `yaml:"neo4j"`
	Graph      GraphConfig      `yaml:"graph"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	OTel       OTelConfig       `yaml:"otel"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

func (c CompletionConfig) IsMock() bool {
	return strings.EqualFold(strings.TrimSpace(c.Engine), "mock")
}
