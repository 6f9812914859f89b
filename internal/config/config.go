package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the semdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings. Dimension lives here
// rather than under index because the model dictates it.
type EmbeddingConfig struct {
	Provider            string       `yaml:"provider"` // openai, ollama, hash
	Model               string       `yaml:"model"`
	Dimension           int          `yaml:"dimension"`
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	DocumentInstruction string       `yaml:"document_instruction"`
	QueryInstruction    string       `yaml:"query_instruction"`
	Cache               CacheConfig  `yaml:"cache"`
	Budget              BudgetConfig `yaml:"budget"`
}

// CacheConfig holds embedding cache settings. An empty backend disables
// caching.
type CacheConfig struct {
	Backend             string   `yaml:"backend"` // redis, memory
	Addrs               []string `yaml:"addrs"`
	Password            string   `yaml:"password"`
	ReadinessTimeoutSec int      `yaml:"readiness_timeout_sec"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`       // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"`     // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"` // для дашборда
	Action               string  `yaml:"action"`                  // "reject" | "warn" (default)
}

// IndexConfig holds HNSW build and query parameters.
type IndexConfig struct {
	M              int `yaml:"m"`
	EFConstruction int `yaml:"ef_construction"`
	EFSearch       int `yaml:"ef_search"`
	MaxElements    int `yaml:"max_elements"`
}

// StorageConfig holds persistence settings. DataDir receives the index
// snapshot pair and the corpus database.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	Sources   SourcesConfig `yaml:"sources"`
}

// SourcesConfig enables and tunes the acquisition sources.
type SourcesConfig struct {
	JSONFile  JSONFileSourceConfig  `yaml:"jsonfile"`
	Synthetic SyntheticSourceConfig `yaml:"synthetic"`
	Arxiv     ArxivSourceConfig     `yaml:"arxiv"`
}

// JSONFileSourceConfig points at a local papers file.
type JSONFileSourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SyntheticSourceConfig tunes the deterministic corpus generator.
type SyntheticSourceConfig struct {
	Enabled bool  `yaml:"enabled"`
	Count   int   `yaml:"count"`
	Seed    int64 `yaml:"seed"`
}

// ArxivSourceConfig tunes the arXiv API fetcher.
type ArxivSourceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Query      string `yaml:"query"`
	MaxResults int    `yaml:"max_results"`
}

// SearchConfig holds request-level retrieval settings.
type SearchConfig struct {
	RequestTimeoutSec int     `yaml:"request_timeout_sec"`
	QAMinScore        float64 `yaml:"qa_min_score"`
	QAMaxContextChars int     `yaml:"qa_max_context_chars"`
}

// Load reads configuration from a YAML file by environment name (local, dev,
// docker, prod).
func Load(env string) (Config, error) {
	return loadFile(findConfigPath(env))
}

func loadFile(configPath string) (Config, error) {
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

// ApplyDefaults fills empty fields with default values. Index defaults match
// the original deployment parameters.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 384
	}
	if c.Embedding.Cache.ReadinessTimeoutSec <= 0 {
		c.Embedding.Cache.ReadinessTimeoutSec = 10
	}
	if c.Index.M <= 0 {
		c.Index.M = 16
	}
	if c.Index.EFConstruction <= 0 {
		c.Index.EFConstruction = 200
	}
	if c.Index.EFSearch <= 0 {
		c.Index.EFSearch = 50
	}
	if c.Index.MaxElements <= 0 {
		c.Index.MaxElements = 20000
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 64
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.Sources.Synthetic.Count <= 0 {
		c.Ingest.Sources.Synthetic.Count = 1000
	}
	if c.Ingest.Sources.Synthetic.Seed == 0 {
		c.Ingest.Sources.Synthetic.Seed = 42
	}
	if c.Ingest.Sources.Arxiv.MaxResults <= 0 {
		c.Ingest.Sources.Arxiv.MaxResults = 1000
	}
	if c.Search.RequestTimeoutSec <= 0 {
		c.Search.RequestTimeoutSec = 5
	}
	if c.Search.QAMinScore <= 0 {
		c.Search.QAMinScore = 0.25
	}
	if c.Search.QAMaxContextChars <= 0 {
		c.Search.QAMaxContextChars = 2000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "hash":
		// ok
	default:
		return fmt.Errorf("embedding.provider must be \"openai\", \"ollama\" or \"hash\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	switch c.Embedding.Cache.Backend {
	case "", "redis", "memory":
		// ok
	default:
		return fmt.Errorf("embedding.cache.backend must be \"redis\" or \"memory\", got %q", c.Embedding.Cache.Backend)
	}
	if c.Embedding.Cache.Backend == "redis" && len(c.Embedding.Cache.Addrs) == 0 {
		return fmt.Errorf("embedding.cache.addrs is required for the redis backend")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Index.MaxElements <= 0 {
		return fmt.Errorf("index.max_elements must be positive, got %d", c.Index.MaxElements)
	}
	if c.Search.QAMinScore < 0 || c.Search.QAMinScore > 1 {
		return fmt.Errorf("search.qa_min_score must be within [0, 1], got %g", c.Search.QAMinScore)
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
