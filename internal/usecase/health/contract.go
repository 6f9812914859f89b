package health

import (
	"context"

	"github.com/semdex-io/semdex/internal/domain"
)

// StatusReporter reports whether the index engine can serve queries.
type StatusReporter interface {
	Status() domain.Status
}

// CorpusPinger probes the corpus database connection.
type CorpusPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker probes the embedding provider.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
