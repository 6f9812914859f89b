package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestSearch(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}

		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "transformer attention" || req.TopK != 3 {
			t.Errorf("unexpected request body: %+v", req)
		}

		_ = json.NewEncoder(w).Encode(SearchResponse{
			Query: req.Query,
			Results: []Result{
				{DocumentID: "p1", Document: Document{ID: "p1", Title: "Attention Is All You Need"}, Score: 0.91, Distance: 0.09},
			},
			TotalFound: 1,
			Returned:   1,
		})
	})

	resp, err := client.Search(context.Background(), SearchRequest{Query: "transformer attention", TopK: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Returned != 1 || len(resp.Results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(resp.Results))
	}
	if resp.Results[0].DocumentID != "p1" {
		t.Errorf("DocumentID = %q, want p1", resp.Results[0].DocumentID)
	}
}

func TestQA(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/qa" {
			t.Errorf("path = %q, want /qa", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(QAResponse{
			Question: "What is attention?",
			Answer:   "Attention weighs token pairs.",
			Sources:  []Result{{DocumentID: "p1", Score: 0.8}},
		})
	})

	resp, err := client.QA(context.Background(), QARequest{Query: "What is attention?"})
	if err != nil {
		t.Fatalf("QA() error = %v", err)
	}
	if resp.Answer == "" || len(resp.Sources) != 1 {
		t.Errorf("unexpected QA response: %+v", resp)
	}
}

func TestStats(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/stats" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(StatsResponse{
			TotalDocuments:     42,
			EmbeddingDimension: 384,
			Status:             "ready",
		})
	})

	resp, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if resp.TotalDocuments != 42 || resp.EmbeddingDimension != 384 {
		t.Errorf("unexpected stats: %+v", resp)
	}
}

func TestReindex(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/reindex" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ReindexResponse{Status: "ok", DocumentsIndexed: 10})
	})

	resp, err := client.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if resp.DocumentsIndexed != 10 {
		t.Errorf("DocumentsIndexed = %d, want 10", resp.DocumentsIndexed)
	}
}

func TestHealthDegraded(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "degraded",
			Checks: map[string]string{"index": "error"},
		})
	})

	resp, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Checks["index"] != "error" {
		t.Errorf("Checks = %v, want index error", resp.Checks)
	}
}

func TestAPIError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":"index_not_ready","message":"index not ready"}}`))
	})

	_, err := client.Search(context.Background(), SearchRequest{Query: "anything"})
	if err == nil {
		t.Fatal("Search() expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Code != CodeIndexNotReady || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
	if !apiErr.IsRetryable() {
		t.Error("index_not_ready should be retryable")
	}
}

func TestAPIErrorNonJSON(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	_, err := client.Stats(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Code != CodeInternalError || apiErr.Message != "upstream exploded" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
	if apiErr.IsRetryable() {
		t.Error("internal_error should not be retryable")
	}
}
