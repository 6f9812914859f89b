package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8000}}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("expected provider=hash, got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimension != 384 {
		t.Errorf("expected Dimension=384, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Index.M != 16 {
		t.Errorf("expected M=16, got %d", cfg.Index.M)
	}
	if cfg.Index.EFConstruction != 200 {
		t.Errorf("expected EFConstruction=200, got %d", cfg.Index.EFConstruction)
	}
	if cfg.Index.EFSearch != 50 {
		t.Errorf("expected EFSearch=50, got %d", cfg.Index.EFSearch)
	}
	if cfg.Index.MaxElements != 20000 {
		t.Errorf("expected MaxElements=20000, got %d", cfg.Index.MaxElements)
	}
	if cfg.Storage.DataDir != "data" {
		t.Errorf("expected DataDir='data', got %q", cfg.Storage.DataDir)
	}
	if cfg.Ingest.BatchSize != 64 {
		t.Errorf("expected BatchSize=64, got %d", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Ingest.Workers)
	}
	if cfg.Search.RequestTimeoutSec != 5 {
		t.Errorf("expected RequestTimeoutSec=5, got %d", cfg.Search.RequestTimeoutSec)
	}
	if cfg.Search.QAMinScore != 0.25 {
		t.Errorf("expected QAMinScore=0.25, got %g", cfg.Search.QAMinScore)
	}
	if cfg.Search.QAMaxContextChars != 2000 {
		t.Errorf("expected QAMaxContextChars=2000, got %d", cfg.Search.QAMaxContextChars)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Embedding: EmbeddingConfig{Provider: "openai", Dimension: 1536},
		Index:     IndexConfig{M: 32, EFConstruction: 400, EFSearch: 100, MaxElements: 100000},
		Storage:   StorageConfig{DataDir: "/var/lib/semdex"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected provider=openai, got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("expected Dimension=1536, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Index.M != 32 {
		t.Errorf("expected M=32, got %d", cfg.Index.M)
	}
	if cfg.Storage.DataDir != "/var/lib/semdex" {
		t.Errorf("expected DataDir='/var/lib/semdex', got %q", cfg.Storage.DataDir)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = "sentence-transformers"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	expected := `embedding.provider must be "openai", "ollama" or "hash", got "sentence-transformers"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_UnknownCacheBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Cache.Backend = "memcached"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown cache backend")
	}
}

func TestValidate_RedisCacheNeedsAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Cache.Backend = "redis"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis cache without addrs")
	}

	cfg.Embedding.Cache.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with addrs set: %v", err)
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget.Action = "invalid_action"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}
	expected := `embedding.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Budget.Action = action

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_QAMinScoreRange(t *testing.T) {
	cfg := validConfig()
	cfg.Search.QAMinScore = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for qa_min_score above 1")
	}
}

func TestLoadFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("SEMDEX_TEST_PORT", "9001")
	t.Setenv("SEMDEX_TEST_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
http:
  port: ${SEMDEX_TEST_PORT}
embedding:
  provider: openai
  model: text-embedding-3-small
  dimension: 1536
  api_key: ${SEMDEX_TEST_KEY}
  base_url: ${SEMDEX_TEST_URL:-https://api.openai.com/v1}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadFile(path)
	if err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	if cfg.HTTP.Port != 9001 {
		t.Errorf("expected port 9001, got %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base url, got %q", cfg.Embedding.BaseURL)
	}
}

func TestLoadFile_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `
http:
  port: 8000
embedding:
  provider: bert-as-a-service
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadFile(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := loadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGetEnv_Default(t *testing.T) {
	t.Setenv("ENV", "")
	if env := GetEnv(); env != "local" {
		t.Errorf("expected 'local', got %q", env)
	}

	t.Setenv("ENV", "prod")
	if env := GetEnv(); env != "prod" {
		t.Errorf("expected 'prod', got %q", env)
	}
}
