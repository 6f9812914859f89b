package semdex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/domain/document"
	"github.com/semdex-io/semdex/internal/embedding/hash"
	"github.com/semdex-io/semdex/internal/engine"
	"github.com/semdex-io/semdex/internal/index"
	"github.com/semdex-io/semdex/internal/repository/corpus"
	ingestuc "github.com/semdex-io/semdex/internal/usecase/ingest"
	retrievaluc "github.com/semdex-io/semdex/internal/usecase/retrieval"
)

const defaultDimension = 384

// hashQAMinScore is the answer relevance floor used with the default hash
// embedder. Its scores measure token overlap and sit well below the cosine
// range of dense models, so the stock floor would reject on-corpus
// questions.
const hashQAMinScore = 0.1

// Client is the embedded semdex engine.
type Client struct {
	eng       *engine.Engine
	corpus    *corpus.Store
	ingest    *ingestuc.Service
	retrieval *retrievaluc.Service
	log       *zap.Logger
}

// New wires an in-process engine. With WithDataDir a previously persisted
// index pair is loaded and serving immediately; otherwise the client starts
// empty and becomes ready after the first Add.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dimension:   defaultDimension,
		maxElements: 20000,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	embedder := cfg.embedder
	modelName := cfg.modelName
	qaMinScore := cfg.qaMinScore
	if embedder == nil {
		h, err := hash.New(cfg.dimension)
		if err != nil {
			return nil, err
		}
		embedder = h
		modelName = hash.ModelName
		if qaMinScore == 0 {
			qaMinScore = hashQAMinScore
		}
	}

	corpusPath := corpus.MemoryPath
	if cfg.dataDir != "" {
		if err := os.MkdirAll(cfg.dataDir, 0o750); err != nil {
			return nil, fmt.Errorf("semdex: create data dir: %w", err)
		}
		corpusPath = filepath.Join(cfg.dataDir, "corpus.db")
	}
	corpusStore, err := corpus.Open(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("semdex: %w", err)
	}

	eng := engine.New(cfg.logger)

	ingestSvc, err := ingestuc.New(corpusStore, eng, batchEmbedder(embedder), ingestuc.Config{
		Index: index.Config{
			Dimension:      cfg.dimension,
			MaxElements:    cfg.maxElements,
			M:              cfg.m,
			EFConstruction: cfg.efConstruction,
			EFSearch:       cfg.efSearch,
		},
		BatchSize: cfg.batchSize,
		Workers:   cfg.workers,
		DataDir:   cfg.dataDir,
	}, cfg.logger)
	if err != nil {
		corpusStore.Close()
		return nil, err
	}

	retrievalSvc := retrievaluc.New(eng, embedder, retrievaluc.Options{
		Model:          modelName,
		RequestTimeout: cfg.requestTimeout,
		QAMinScore:     qaMinScore,
	}, cfg.logger)

	c := &Client{
		eng:       eng,
		corpus:    corpusStore,
		ingest:    ingestSvc,
		retrieval: retrievalSvc,
		log:       cfg.logger,
	}

	if cfg.dataDir != "" {
		if err := c.restore(cfg.dataDir, cfg.dimension); err != nil {
			corpusStore.Close()
			return nil, err
		}
	}
	return c, nil
}

// restore loads a persisted pair when present. A missing pair is fine (the
// client starts unready); a corrupt one is an error the caller must resolve.
func (c *Client) restore(dataDir string, dimension int) error {
	st, err := engine.LoadState(dataDir)
	switch {
	case err == nil:
		if dim := st.Index.Dimension(); dim != dimension {
			return fmt.Errorf("%w: persisted index dimension %d does not match configured %d",
				domain.ErrConfiguration, dim, dimension)
		}
		c.eng.Install(st)
		return nil
	case os.IsNotExist(err):
		return nil
	default:
		return fmt.Errorf("semdex: %w", err)
	}
}

// Add stores papers in the corpus and rebuilds the serving index. Papers
// whose normalized title duplicates an existing one are dropped. Returns
// the number of papers accepted.
func (c *Client) Add(ctx context.Context, papers []Paper) (int, error) {
	docs := make([]document.Document, 0, len(papers))
	for i := range papers {
		doc, err := papers[i].toDocument()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
		}
		docs = append(docs, doc)
	}
	return c.ingest.Add(ctx, docs)
}

// Search returns papers ranked by descending similarity to q.Text.
func (c *Client) Search(ctx context.Context, q Query) ([]Result, error) {
	results, _, err := c.retrieval.Search(ctx, domain.Query{
		Text:      q.Text,
		TopK:      q.TopK,
		Threshold: q.Threshold,
	})
	if err != nil {
		return nil, err
	}
	return resultsFromDomain(results), nil
}

// Answer composes an extractive answer from retrieved papers. When no paper
// is relevant enough the fixed insufficient-context text is returned with
// no sources.
func (c *Client) Answer(ctx context.Context, question string) (Answer, error) {
	ans, err := c.retrieval.Answer(ctx, question, 0)
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		Question:    ans.Question,
		AnswerText:  ans.AnswerText,
		Sources:     resultsFromDomain(ans.Sources),
		ContextUsed: ans.ContextUsed,
	}, nil
}

// Reindex rebuilds the serving index from the corpus. Queries keep serving
// from the old structure until the new one is complete.
func (c *Client) Reindex(ctx context.Context) (int, error) {
	return c.ingest.Rebuild(ctx)
}

// Stats snapshots the engine counters.
func (c *Client) Stats() Stats {
	s := c.retrieval.Stats()
	return Stats{
		TotalDocuments:     s.TotalDocuments,
		EmbeddingDimension: s.EmbeddingDimension,
		MaxElements:        s.MaxElements,
		CurrentSize:        s.CurrentSize,
		Status:             string(s.Status),
		EmbeddingModel:     s.EmbeddingModel,
	}
}

// Ready reports whether the engine serves queries.
func (c *Client) Ready() bool {
	return c.eng.Status() != domain.StatusUnready
}

// Close releases the corpus database. In-flight queries against the loaded
// index finish normally.
func (c *Client) Close() error {
	return c.corpus.Close()
}

// batchEmbedder exposes the batch side of an embedder, falling back to
// per-text calls for implementations without native batching.
func batchEmbedder(e domain.Embedder) ingestuc.Embedder {
	if be, ok := e.(domain.BatchEmbedder); ok {
		return batchFunc(be.BatchEmbed)
	}
	return batchFunc(func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
		return domain.BatchFallback(ctx, e, texts)
	})
}

type batchFunc func(context.Context, []string) (domain.BatchEmbeddingResult, error)

func (f batchFunc) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return f(ctx, texts)
}

// WaitReady blocks until the engine is ready or the context expires. Useful
// when another goroutine runs the initial Add.
func (c *Client) WaitReady(ctx context.Context) error {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if c.Ready() {
			return nil
		}
		select {
		case <-ctx.Done():
			if c.Ready() {
				return nil
			}
			return errors.Join(domain.ErrIndexNotReady, ctx.Err())
		case <-tick.C:
		}
	}
}
