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

// Config holds the jobmatch configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	Store       StoreConfig       `yaml:"store"`
	Sync        SyncConfig        `yaml:"sync"`
	Search      SearchConfig      `yaml:"search"`
	Match       MatchConfig       `yaml:"match"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds the shared secret guarding ingest and sync routes.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Header  string   `yaml:"header"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// Vector index drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// VectorIndexConfig selects and tunes the vector index backend.
type VectorIndexConfig struct {
	Driver             string   `yaml:"driver"` // valkey, redis, postgres, memory (default: valkey)
	Addrs              []string `yaml:"addrs"`
	Password           string   `yaml:"password"`
	DSN                string   `yaml:"dsn"`
	Dimensions         int      `yaml:"dimensions"`
	HNSWM              int      `yaml:"hnsw_m"`
	HNSWEFConstruction int      `yaml:"hnsw_ef_construction"`
	TextSearch         *bool    `yaml:"text_search"` // default: true for redis, false otherwise
	TimeoutSec         int      `yaml:"timeout_sec"`
	ReadinessTimeout   int      `yaml:"readiness_timeout_sec"`
	MaxConns           int32    `yaml:"max_conns"`
	KeyPrefix          string   `yaml:"key_prefix"`
}

// Embedding providers.
const (
	EmbeddingOpenAI  = "openai"
	EmbeddingHashing = "hashing"
)

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai, hashing (default: openai)
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	BatchSize           int    `yaml:"batch_size"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	Cache               bool   `yaml:"cache"`
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
}

// Generation providers.
const (
	GenerationOpenAI = "openai"
	GenerationGemini = "gemini"
	GenerationNone   = "none"
)

// GenerationConfig holds settings for match explanations.
type GenerationConfig struct {
	Provider         string  `yaml:"provider"` // openai, gemini, none (default: none)
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	Temperature      float32 `yaml:"temperature"`
	TimeoutSec       int     `yaml:"timeout_sec"`
	QueryLimit       int     `yaml:"query_limit"`
	DescriptionLimit int     `yaml:"description_limit"`
}

// StoreConfig points at the authoritative job store.
type StoreConfig struct {
	IntakeURL        string `yaml:"intake_url"`
	JobsURL          string `yaml:"jobs_url"`
	APIKey           string `yaml:"api_key"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	MaxRetries       int    `yaml:"max_retries"`
	InitialBackoffMS int    `yaml:"initial_backoff_ms"`
}

// Enabled reports whether a store intake endpoint is configured.
func (c StoreConfig) Enabled() bool { return c.IntakeURL != "" }

// SyncConfig holds crawl settings.
type SyncConfig struct {
	SourceFile    string `yaml:"source_file"`
	DefaultSource string `yaml:"default_source"`
	BatchLimit    int    `yaml:"batch_limit"` // 0 = unbounded
	IntervalSec   int    `yaml:"interval_sec"` // 0 = no periodic sync
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	FileK    int `yaml:"file_k"`
	MaxK     int `yaml:"max_k"`
}

// MatchConfig tunes candidate ranking.
type MatchConfig struct {
	Concurrency   int `yaml:"concurrency"`
	MaxCandidates int `yaml:"max_candidates"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates one config file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 10 << 20
	}

	v := &c.VectorIndex
	if v.Driver == "" {
		v.Driver = DriverValkey
	}
	if v.TextSearch == nil {
		ts := v.Driver == DriverRedis
		v.TextSearch = &ts
	}
	if v.ReadinessTimeout <= 0 {
		v.ReadinessTimeout = 10
	}
	if v.TimeoutSec <= 0 {
		v.TimeoutSec = 5
	}
	if v.HNSWM <= 0 {
		v.HNSWM = 16
	}
	if v.HNSWEFConstruction <= 0 {
		v.HNSWEFConstruction = 200
	}
	if v.KeyPrefix == "" {
		v.KeyPrefix = "jobmatch:"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = EmbeddingOpenAI
	}
	if c.Embedding.Model == "" && c.Embedding.Provider == EmbeddingOpenAI {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = v.Dimensions
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
		if c.Embedding.Provider == EmbeddingHashing {
			c.Embedding.Dimensions = 256
		}
	}
	if v.Dimensions <= 0 {
		v.Dimensions = c.Embedding.Dimensions
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}

	if c.Generation.Provider == "" {
		c.Generation.Provider = GenerationNone
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 30
	}
	if c.Generation.QueryLimit <= 0 {
		c.Generation.QueryLimit = 600
	}
	if c.Generation.DescriptionLimit <= 0 {
		c.Generation.DescriptionLimit = 800
	}

	if c.Store.TimeoutSec <= 0 {
		c.Store.TimeoutSec = 10
	}
	if c.Store.InitialBackoffMS <= 0 {
		c.Store.InitialBackoffMS = 500
	}

	if c.Search.DefaultK <= 0 {
		c.Search.DefaultK = 3
	}
	if c.Search.FileK <= 0 {
		c.Search.FileK = 5
	}
	if c.Search.MaxK <= 0 {
		c.Search.MaxK = 100
	}
	if c.Match.Concurrency <= 0 {
		c.Match.Concurrency = 4
	}
	if c.Auth.Header == "" {
		c.Auth.Header = "X-Internal-API-Key"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.VectorIndex.Driver {
	case DriverValkey, DriverRedis:
		if len(c.VectorIndex.Addrs) == 0 {
			return fmt.Errorf("vector_index.addrs is required for driver %q", c.VectorIndex.Driver)
		}
	case DriverPostgres:
		if c.VectorIndex.DSN == "" {
			return errors.New("vector_index.dsn is required for driver \"postgres\"")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("vector_index.driver must be one of valkey, redis, postgres, memory, got %q",
			c.VectorIndex.Driver)
	}
	if c.VectorIndex.Dimensions != c.Embedding.Dimensions {
		return fmt.Errorf("vector_index.dimensions (%d) must equal embedding.dimensions (%d)",
			c.VectorIndex.Dimensions, c.Embedding.Dimensions)
	}

	switch c.Embedding.Provider {
	case EmbeddingOpenAI:
		if c.Embedding.APIKey == "" {
			return errors.New("embedding.api_key is required for provider \"openai\"")
		}
	case EmbeddingHashing:
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"hashing\", got %q", c.Embedding.Provider)
	}

	switch c.Generation.Provider {
	case GenerationOpenAI, GenerationGemini:
		if c.Generation.APIKey == "" {
			return fmt.Errorf("generation.api_key is required for provider %q", c.Generation.Provider)
		}
	case GenerationNone:
	default:
		return fmt.Errorf("generation.provider must be one of openai, gemini, none, got %q", c.Generation.Provider)
	}

	if c.Store.Enabled() && c.Store.APIKey == "" {
		return errors.New("store.api_key is required when store.intake_url is set")
	}
	if c.Sync.BatchLimit < 0 {
		return fmt.Errorf("sync.batch_limit must not be negative, got %d", c.Sync.BatchLimit)
	}
	if c.Search.DefaultK > c.Search.MaxK || c.Search.FileK > c.Search.MaxK {
		return fmt.Errorf("search.default_k and search.file_k must not exceed search.max_k (%d)", c.Search.MaxK)
	}
	return nil
}

// Seconds converts a whole-second setting to a time.Duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

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
