package ingest

import (
	"context"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/domain/document"
	"github.com/semdex-io/semdex/internal/engine"
)

// CorpusStore is the durable document collection rebuilds are sourced from.
// All returns documents in stable insertion order; Upsert replaces documents
// that reuse an existing id.
type CorpusStore interface {
	Upsert(ctx context.Context, docs []document.Document) error
	All(ctx context.Context) ([]document.Document, error)
}

// StateInstaller swaps a freshly built state into the serving path. Rebuild
// runs the build callback under the writer lock and discards its result on
// error, leaving the previous state untouched.
type StateInstaller interface {
	Rebuild(ctx context.Context, build func(context.Context) (*engine.State, error)) error
}

// Embedder vectorizes document batches. The result preserves input order.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
