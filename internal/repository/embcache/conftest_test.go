package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/db"
	"github.com/semdex-io/semdex/internal/domain"
)

// countingEmbedder answers with a fixed vector and counts provider calls.
type countingEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	embedCalls int
	batchCalls int
	batchTexts []string
}

func (e *countingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	e.embedCalls++
	return e.result, e.err
}

func (e *countingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batchCalls++
	e.batchTexts = texts
	if e.batchErr != nil {
		return domain.BatchEmbeddingResult{}, e.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = e.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: e.result.PromptTokens * len(texts),
		TotalTokens:  e.result.TotalTokens * len(texts),
	}, nil
}

// mapStore is an in-memory cache backend. Errors can be injected to
// simulate an unhealthy store.
type mapStore struct {
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return data, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[key] = value
	return nil
}

func newCachedEmbedder(t *testing.T, inner *countingEmbedder) (*CachedEmbedder, *mapStore) {
	t.Helper()
	ms := newMapStore()
	return New(inner, ms, nil, zap.NewNop()), ms
}
