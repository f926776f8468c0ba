package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/autorag/internal/domain"
)

// Retrieval backends.
const (
	BackendValkey = "valkey"
	BackendRedis  = "redis"
	BackendQdrant = "qdrant"
)

// Config holds the autorag configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Store      StoreConfig      `yaml:"store"`
	Images     ImagesConfig     `yaml:"images"`
	Cache      CacheConfig      `yaml:"cache"`
	Tracing    TracingConfig    `yaml:"tracing"`
	RAG        RAGConfig        `yaml:"rag"`
	Indexer    IndexerConfig    `yaml:"indexer"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int     `yaml:"port"`
	ReadTimeoutSec  int     `yaml:"read_timeout_sec"`
	WriteTimeoutSec int     `yaml:"write_timeout_sec"` // covers a whole streamed answer
	ShutdownSec     int     `yaml:"shutdown_timeout_sec"`
	CORSOrigin      string  `yaml:"cors_origin"`
	RateLimit       float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	RateBurst       int     `yaml:"rate_limit_burst"`
}

// RetrievalConfig holds vector search settings.
type RetrievalConfig struct {
	Backend          string `yaml:"backend"`  // valkey, redis, qdrant (default: valkey)
	Endpoint         string `yaml:"endpoint"` // VECTOR_ENDPOINT: host:port, comma separated for a cluster
	APIKey           string `yaml:"api_key"`  // VECTOR_API_KEY
	Username         string `yaml:"username"`
	DB               int    `yaml:"db"`
	TLS              bool   `yaml:"tls"`
	Index            string `yaml:"index"`     // VECTOR_INDEX_NAME
	Namespace        string `yaml:"namespace"` // VECTOR_NAMESPACE
	TopK             int    `yaml:"top_k"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// Addrs splits the endpoint into node addresses.
func (r RetrievalConfig) Addrs() []string {
	var out []string
	for _, a := range strings.Split(r.Endpoint, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// EmbeddingConfig holds query and record embedding settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	BatchSize           int    `yaml:"batch_size"`
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
}

// CompletionConfig holds chat model settings.
type CompletionConfig struct {
	APIKey  string `yaml:"api_key"` // OPENAI_API_KEY
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// StoreConfig holds relational store settings.
type StoreConfig struct {
	URL      string `yaml:"url"`      // DATABASE_URL
	Password string `yaml:"password"` // DATABASE_PASSWORD
	Table    string `yaml:"table"`
	MaxConns int32  `yaml:"max_conns"`
}

// ImagesConfig holds image bucket settings.
type ImagesConfig struct {
	BaseURL string `yaml:"base_url"` // IMAGE_BASE_URL
}

// CacheConfig holds embedding cache settings. The cache lives in Valkey/Redis:
// the retrieval store itself, or Addrs when the retrieval backend is Qdrant.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	Addrs   []string `yaml:"addrs"`
	TTLSec  int      `yaml:"ttl_sec"` // 0 = no expiry
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	ServiceName string `yaml:"service_name"` // empty disables server spans
}

// RAGConfig tunes the pipeline.
type RAGConfig struct {
	MaxContextItems int `yaml:"max_context_items"`
}

// IndexerConfig tunes the indexer binary.
type IndexerConfig struct {
	BatchSize int  `yaml:"batch_size"`
	Reset     bool `yaml:"reset"`
	Rebuild   bool `yaml:"rebuild"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod, docker, test).
// A .env file in the working directory is loaded first; existing variables win.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Retrieval.Backend == "" {
		c.Retrieval.Backend = BackendValkey
	}
	if c.Retrieval.Index == "" {
		c.Retrieval.Index = "automotive"
	}
	if c.Retrieval.Namespace == "" {
		c.Retrieval.Namespace = "ns1"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 8
	}
	if c.Retrieval.ReadinessTimeout <= 0 {
		c.Retrieval.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	// Один ключ на оба вызова, если отдельный не задан.
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.Completion.APIKey
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Store.Table == "" {
		c.Store.Table = "Cars"
	}
	if c.Store.MaxConns <= 0 {
		c.Store.MaxConns = 4
	}
	if c.RAG.MaxContextItems <= 0 {
		c.RAG.MaxContextItems = 6
	}
	if c.Indexer.BatchSize <= 0 {
		c.Indexer.BatchSize = 64
	}
}

// Validate checks the configuration for correctness.
// Credentials are not required here: a missing key only fails the code path that needs it.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Retrieval.Backend {
	case BackendValkey, BackendRedis, BackendQdrant:
		// ok
	default:
		return fmt.Errorf("retrieval.backend must be valkey, redis or qdrant, got %q", c.Retrieval.Backend)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit_rps must not be negative, got %v", c.HTTP.RateLimit)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative, got %d", c.Cache.TTLSec)
	}
	return nil
}

// Preflight reports the first key the RAG endpoints need but the configuration lacks.
func (c *Config) Preflight() error {
	if strings.TrimSpace(c.Completion.APIKey) == "" {
		return domain.NewConfigurationError("OPENAI_API_KEY")
	}
	if len(c.Retrieval.Addrs()) == 0 {
		return domain.NewConfigurationError("VECTOR_ENDPOINT")
	}
	return nil
}

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
