package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

func ollamaServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func testEmbedder(baseURL string, dimensions int) *Embedder {
	return NewEmbedder(&Config{
		BaseURL:    baseURL,
		Model:      "nomic-embed-text",
		Dimensions: dimensions,
	})
}

func TestEmbedder_Embed(t *testing.T) {
	var gotReq embedRequest

	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	})

	result, err := testEmbedder(server.URL, 3).Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if gotReq.Model != "nomic-embed-text" {
		t.Errorf("request model = %q, expected nomic-embed-text", gotReq.Model)
	}
	if gotReq.Prompt != "hello world" {
		t.Errorf("request prompt = %q, expected hello world", gotReq.Prompt)
	}
	if len(result.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Embedding))
	}
	if result.TotalTokens != 0 {
		t.Errorf("ollama reports no usage, TotalTokens = %d", result.TotalTokens)
	}
}

func TestEmbedder_Embed_DimensionMismatch(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2}})
	})

	_, err := testEmbedder(server.URL, 768).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbedder_Embed_NoDimensionCheckWhenUnset(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2}})
	})

	result, err := testEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Errorf("expected 2 dimensions, got %d", len(result.Embedding))
	}
}

func TestEmbedder_Embed_ServerError(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "model runner has unexpectedly stopped"}`))
	})

	_, err := testEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_Embed_RateLimited(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := testEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestEmbedder_Embed_EmptyEmbedding(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	})

	_, err := testEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_BatchEmbed_SequentialInOrder(t *testing.T) {
	// Каждый prompt получает свой вектор: проверяем сохранение порядка.
	vectors := map[string][]float32{
		"one":   {1, 0},
		"two":   {2, 0},
		"three": {3, 0},
	}

	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: vectors[req.Prompt]})
	})

	result, err := testEmbedder(server.URL, 2).BatchEmbed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}

	if len(result.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(result.Embeddings))
	}
	for i, want := range []float32{1, 2, 3} {
		if result.Embeddings[i][0] != want {
			t.Errorf("embeddings[%d][0] = %f, expected %f", i, result.Embeddings[i][0], want)
		}
	}
}

func TestEmbedder_BatchEmbed_FailureAborts(t *testing.T) {
	var calls int

	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1}})
	})

	_, err := testEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error from failed batch item")
	}
	if calls != 2 {
		t.Errorf("expected abort after second call, got %d calls", calls)
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"models": [{"name": "llama3:8b"}, {"name": "nomic-embed-text:latest"}]}`))
	})

	if err := testEmbedder(server.URL, 0).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

func TestEmbedder_HealthCheck_ExactModelName(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": [{"name": "nomic-embed-text"}]}`))
	})

	if err := testEmbedder(server.URL, 0).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

func TestEmbedder_HealthCheck_ModelMissing(t *testing.T) {
	server := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": [{"name": "llama3:8b"}]}`))
	})

	err := testEmbedder(server.URL, 0).HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestEmbedder_HealthCheck_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	if err := testEmbedder(server.URL, 0).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}
