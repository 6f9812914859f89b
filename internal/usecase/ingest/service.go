// Package ingest builds the serving state: it embeds documents in
// parallel batches, assembles a fresh index and document table off to the
// side, and installs the pair atomically. The corpus store is the source
// of truth; every mutation goes corpus-first and then rebuilds from it.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/semdex-io/semdex/internal/domain/document"
	"github.com/semdex-io/semdex/internal/engine"
	"github.com/semdex-io/semdex/internal/index"
	"github.com/semdex-io/semdex/internal/metrics"
	"github.com/semdex-io/semdex/internal/repository/docstore"
)

const (
	// DefaultBatchSize is the number of documents embedded per provider call.
	DefaultBatchSize = 64
	// DefaultWorkers bounds concurrent embedding batches.
	DefaultWorkers = 4
)

// Config tunes the build pipeline. Index holds the build parameters of the
// structure being produced.
type Config struct {
	Index     index.Config
	BatchSize int
	Workers   int
	// DataDir, when set, receives the persisted pair after every
	// successful build.
	DataDir string
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	c.Index.ApplyDefaults()
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
}

// Service is the ingestion pipeline.
type Service struct {
	corpus    CorpusStore
	installer StateInstaller
	embed     Embedder
	cfg       Config
	log       *zap.Logger
}

// New creates an ingest service.
func New(corpus CorpusStore, installer StateInstaller, embed Embedder, cfg Config, log *zap.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Index.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		corpus:    corpus,
		installer: installer,
		embed:     embed,
		cfg:       cfg,
		log:       log,
	}, nil
}

// Add records new documents in the corpus and rebuilds the serving state.
// Documents whose normalized title already belongs to a different document
// are dropped; reusing an id replaces the stored document. Returns the
// number of documents accepted into the corpus.
func (s *Service) Add(ctx context.Context, docs []document.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	existing, err := s.corpus.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("read corpus: %w", err)
	}
	titles := make(map[string]string, len(existing))
	for i := range existing {
		titles[normalizeTitle(existing[i].Title())] = existing[i].ID()
	}

	fresh := make([]document.Document, 0, len(docs))
	for i := range docs {
		d := docs[i]
		key := normalizeTitle(d.Title())
		if key == "" {
			continue
		}
		if owner, seen := titles[key]; seen && owner != d.ID() {
			s.log.Debug("dropping duplicate title",
				zap.String("id", d.ID()),
				zap.String("kept_id", owner),
			)
			continue
		}
		titles[key] = d.ID()
		fresh = append(fresh, d)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := s.corpus.Upsert(ctx, fresh); err != nil {
		return 0, fmt.Errorf("store documents: %w", err)
	}
	if _, err := s.Rebuild(ctx); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// Rebuild regenerates the serving pair from the corpus, persists it and
// swaps it in. The old generation serves throughout; a failed or canceled
// build is discarded without touching it. Returns the number of documents
// indexed.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()
	var indexed int

	err := s.installer.Rebuild(ctx, func(ctx context.Context) (*engine.State, error) {
		docs, err := s.corpus.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}

		st, err := s.build(ctx, docs)
		if err != nil {
			return nil, err
		}

		if s.cfg.DataDir != "" {
			if err := engine.SaveState(s.cfg.DataDir, st); err != nil {
				return nil, fmt.Errorf("persist state: %w", err)
			}
		}
		indexed = st.Docs.Len()
		return st, nil
	})

	metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.IndexRebuildsTotal.WithLabelValues("ok").Inc()

	s.log.Info("rebuild complete",
		zap.Int("documents", indexed),
		zap.Duration("took", time.Since(start)),
	)
	return indexed, nil
}

// build embeds docs in parallel batches and assembles the pair. Insertion
// happens single-threaded in corpus order, so an unchanged corpus yields
// the same internal ids on every build.
func (s *Service) build(ctx context.Context, docs []document.Document) (*engine.State, error) {
	cfg := s.cfg.Index
	if need := 2 * len(docs); need > cfg.MaxElements {
		cfg.MaxElements = need
	}
	idx, err := index.New(cfg)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for batchStart := 0; batchStart < len(docs); batchStart += s.cfg.BatchSize {
		batchEnd := batchStart + s.cfg.BatchSize
		if batchEnd > len(docs) {
			batchEnd = len(docs)
		}
		g.Go(func() error {
			texts := make([]string, 0, batchEnd-batchStart)
			for i := batchStart; i < batchEnd; i++ {
				texts = append(texts, embedText(&docs[i]))
			}
			res, err := s.embed.BatchEmbed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", batchStart, batchEnd, err)
			}
			if len(res.Embeddings) != len(texts) {
				return fmt.Errorf("embed batch [%d:%d]: got %d embeddings for %d texts",
					batchStart, batchEnd, len(res.Embeddings), len(texts))
			}
			for i, v := range res.Embeddings {
				vectors[batchStart+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store := docstore.NewWithCapacity(len(docs))
	for i := range docs {
		id, err := idx.Add(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("index document %s: %w", docs[i].ID(), err)
		}
		if err := store.Put(id, docs[i]); err != nil {
			return nil, err
		}
	}
	return engine.NewState(idx, store)
}

// embedText is the text a document is indexed under: title plus body, the
// same shape queries are matched against.
func embedText(d *document.Document) string {
	title := strings.TrimSpace(d.Title())
	if title == "" {
		return d.Text()
	}
	return title + ". " + d.Text()
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
