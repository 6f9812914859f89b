package retrieval

import (
	"context"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/engine"
)

// StateProvider yields the current serving generation. Snapshots stay
// valid for the whole request even if a rebuild swaps in a newer one.
type StateProvider interface {
	Snapshot() (*engine.State, error)
	Stats() domain.Stats
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
