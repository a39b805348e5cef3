package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported drivers.
const (
	CatalogRedis    = "redis"
	CatalogPostgres = "postgres"
	VectorRedis     = "redis"
	VectorQdrant    = "qdrant"
)

// Config holds the talk2shop service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Chat      ChatConfig      `yaml:"chat"`
	Auth      AuthConfig      `yaml:"auth"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string   `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File  FileSink `yaml:"file"`
}

// FileSink enables a rotated JSON log file next to the console output.
type FileSink struct {
	Path       string `yaml:"path"` // empty = disabled
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// RedisConfig holds the shared Redis connection (catalog, vectors, embedding cache).
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// CatalogConfig selects the product store.
type CatalogConfig struct {
	Driver   string         `yaml:"driver"` // redis, postgres (default: redis)
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds the Postgres catalog connection settings.
type PostgresConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_sec"`
}

// VectorConfig selects and tunes the vector index backend.
type VectorConfig struct {
	Driver          string       `yaml:"driver"` // redis, qdrant (default: redis)
	IndexPrefix     string       `yaml:"index_prefix"`
	PollIntervalMs  int          `yaml:"poll_interval_ms"`
	ReadyTimeoutSec int          `yaml:"ready_timeout_sec"`
	HNSWM           int          `yaml:"hnsw_m"`
	HNSWEFConstruct int          `yaml:"hnsw_ef_construction"`
	Qdrant          QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the Qdrant gRPC endpoint.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"` // input cap, 0 = no truncation
	Encoding    string `yaml:"encoding"`   // tiktoken encoding name
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// SearchConfig holds retrieval defaults and upstream deadlines.
type SearchConfig struct {
	DefaultLimit     int `yaml:"default_limit"`
	MaxLimit         int `yaml:"max_limit"`
	MinTopK          int `yaml:"min_top_k"`
	MaxTopK          int `yaml:"max_top_k"`
	SemanticTopK     int `yaml:"semantic_top_k"`
	EmbedTimeoutMs   int `yaml:"embed_timeout_ms"`
	VectorTimeoutMs  int `yaml:"vector_timeout_ms"`
	CatalogTimeoutMs int `yaml:"catalog_timeout_ms"`
}

// IndexingConfig holds the write-through retry policy.
type IndexingConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
	AttemptTimeoutMs int `yaml:"attempt_timeout_ms"`
	BatchSize        int `yaml:"batch_size"`
}

// ChatConfig holds the chat agent settings. Empty APIKey disables the agent.
type ChatConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	MaxSteps       int     `yaml:"max_steps"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float32 `yaml:"temperature"`
	TimeoutSec     int     `yaml:"timeout_sec"`
	InventoryLimit int     `yaml:"inventory_limit"`
}

// TracingConfig holds OpenTelemetry exporter settings. Empty endpoint disables tracing.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML, substitutes env variables and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60 // chat agent rounds are slow
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "talk2shop:"
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = CatalogRedis
	}
	if c.Catalog.Postgres.MaxOpenConns <= 0 {
		c.Catalog.Postgres.MaxOpenConns = 20
	}
	if c.Catalog.Postgres.MaxIdleConns <= 0 {
		c.Catalog.Postgres.MaxIdleConns = 5
	}
	if c.Catalog.Postgres.ConnMaxLifetime <= 0 {
		c.Catalog.Postgres.ConnMaxLifetime = 300
	}
	if c.Vector.Driver == "" {
		c.Vector.Driver = VectorRedis
	}
	if c.Vector.IndexPrefix == "" {
		c.Vector.IndexPrefix = "products"
	}
	if c.Vector.PollIntervalMs <= 0 {
		c.Vector.PollIntervalMs = 2000
	}
	if c.Vector.ReadyTimeoutSec <= 0 {
		c.Vector.ReadyTimeoutSec = 60
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}
	if c.Vector.Qdrant.Port <= 0 {
		c.Vector.Qdrant.Port = 6334
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.Encoding == "" {
		c.Embedding.Encoding = "cl100k_base"
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.MinTopK <= 0 {
		c.Search.MinTopK = 50
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 500
	}
	if c.Search.SemanticTopK <= 0 {
		c.Search.SemanticTopK = 5
	}
	if c.Search.EmbedTimeoutMs <= 0 {
		c.Search.EmbedTimeoutMs = 3000
	}
	if c.Search.VectorTimeoutMs <= 0 {
		c.Search.VectorTimeoutMs = 2000
	}
	if c.Search.CatalogTimeoutMs <= 0 {
		c.Search.CatalogTimeoutMs = 2000
	}
	if c.Indexing.MaxAttempts <= 0 {
		c.Indexing.MaxAttempts = 4
	}
	if c.Indexing.InitialBackoffMs <= 0 {
		c.Indexing.InitialBackoffMs = 200
	}
	if c.Indexing.MaxBackoffMs <= 0 {
		c.Indexing.MaxBackoffMs = 3000
	}
	if c.Indexing.AttemptTimeoutMs <= 0 {
		c.Indexing.AttemptTimeoutMs = 5000
	}
	if c.Indexing.BatchSize <= 0 {
		c.Indexing.BatchSize = 100
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "gpt-4o-mini"
	}
	if c.Chat.MaxSteps <= 0 {
		c.Chat.MaxSteps = 5
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = 2000
	}
	if c.Chat.TimeoutSec <= 0 {
		c.Chat.TimeoutSec = 45
	}
	if c.Chat.InventoryLimit <= 0 {
		c.Chat.InventoryLimit = 200
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "talk2shop"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	needsRedis := c.Catalog.Driver == CatalogRedis || c.Vector.Driver == VectorRedis
	if needsRedis && len(c.Redis.Addrs) == 0 {
		errs = append(errs, errors.New("redis.addrs is required"))
	}

	switch c.Catalog.Driver {
	case CatalogRedis:
	case CatalogPostgres:
		if c.Catalog.Postgres.DSN == "" {
			errs = append(errs, errors.New("catalog.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.driver must be %q or %q, got %q",
			CatalogRedis, CatalogPostgres, c.Catalog.Driver))
	}

	switch c.Vector.Driver {
	case VectorRedis:
	case VectorQdrant:
		if c.Vector.Qdrant.Host == "" {
			errs = append(errs, errors.New("vector.qdrant.host is required for the qdrant driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector.driver must be %q or %q, got %q",
			VectorRedis, VectorQdrant, c.Vector.Driver))
	}

	if c.Embedding.APIKey == "" {
		errs = append(errs, errors.New("embedding.api_key is required"))
	}
	if c.Search.MinTopK > c.Search.MaxTopK {
		errs = append(errs, fmt.Errorf("search.min_top_k (%d) exceeds search.max_top_k (%d)",
			c.Search.MinTopK, c.Search.MaxTopK))
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit))
	}
	if c.Indexing.InitialBackoffMs > c.Indexing.MaxBackoffMs {
		errs = append(errs, fmt.Errorf("indexing.initial_backoff_ms (%d) exceeds indexing.max_backoff_ms (%d)",
			c.Indexing.InitialBackoffMs, c.Indexing.MaxBackoffMs))
	}
	if c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be in (0, 1], got %g", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}

// EmbedTimeout is the deadline for a single query embedding.
func (s SearchConfig) EmbedTimeout() time.Duration { return ms(s.EmbedTimeoutMs) }

// VectorTimeout is the deadline for a single vector query.
func (s SearchConfig) VectorTimeout() time.Duration { return ms(s.VectorTimeoutMs) }

// CatalogTimeout is the deadline for a single catalog query.
func (s SearchConfig) CatalogTimeout() time.Duration { return ms(s.CatalogTimeoutMs) }

// PollInterval is the wait between index readiness probes.
func (v VectorConfig) PollInterval() time.Duration { return ms(v.PollIntervalMs) }

// ReadyTimeout bounds the wait for a freshly created index.
func (v VectorConfig) ReadyTimeout() time.Duration {
	return time.Duration(v.ReadyTimeoutSec) * time.Second
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
