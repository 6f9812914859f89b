package semdex

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain"
)

// Embedder vectorizes text. Implementations must be deterministic for a
// fixed model version and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	dataDir        string
	dimension      int
	maxElements    int
	m              int
	efConstruction int
	efSearch       int
	batchSize      int
	workers        int

	embedder  domain.Embedder
	modelName string

	requestTimeout time.Duration
	qaMinScore     float32

	logger *zap.Logger
}

// WithDataDir persists the index pair and the corpus database under dir.
// Without it everything lives in memory and dies with the Client.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) { c.dataDir = dir }
}

// WithDimension sets the embedding dimensionality (default 384). Must match
// the embedder in use.
func WithDimension(d int) Option {
	return func(c *clientConfig) { c.dimension = d }
}

// WithIndexParams tunes the HNSW graph. Zero values keep the defaults
// (M=16, ef_construction=200, ef_search=50).
func WithIndexParams(m, efConstruction, efSearch int) Option {
	return func(c *clientConfig) {
		c.m = m
		c.efConstruction = efConstruction
		c.efSearch = efSearch
	}
}

// WithMaxElements pre-sizes the index capacity (default 20000). Builds grow
// it to twice the corpus size when the corpus is larger.
func WithMaxElements(n int) Option {
	return func(c *clientConfig) { c.maxElements = n }
}

// WithEmbedder replaces the default feature-hashing embedder. modelName is
// reported in Stats.
func WithEmbedder(e Embedder, modelName string) Option {
	return func(c *clientConfig) {
		c.embedder = &embedderAdapter{inner: e}
		c.modelName = modelName
	}
}

// WithRequestTimeout bounds embedding plus search per query (default 5s).
func WithRequestTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.requestTimeout = d }
}

// WithQAMinScore sets the relevance floor for answer composition: when the
// best hit scores below it, Answer returns the fixed insufficient-context
// text. Defaults to 0.25, or 0.1 with the default hash embedder, whose
// lexical scores run lower.
func WithQAMinScore(score float32) Option {
	return func(c *clientConfig) { c.qaMinScore = score }
}

// WithLogger attaches a zap logger; the default is a Nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithIngestBatch tunes embedding batch size and worker count for builds.
func WithIngestBatch(batchSize, workers int) Option {
	return func(c *clientConfig) {
		c.batchSize = batchSize
		c.workers = workers
	}
}

// embedderAdapter lifts the public Embedder onto the domain contract.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vec, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, a, texts)
}
