// Package engine owns the serving state of the retrieval system. The
// current State lives behind an atomic pointer: readers load it and search
// without ever taking a lock, while all mutation serializes on a single
// writer mutex. A rebuild constructs the next State off to the side with
// the old one still serving and swaps the pointer only once the new one is
// complete, so readers observe either the fully old or the fully new
// generation and never a partial one.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/metrics"
)

// Engine is the copy-on-write holder for the serving State.
type Engine struct {
	mu         sync.Mutex // single writer lock, readers never touch it
	current    atomic.Pointer[State]
	rebuilding atomic.Bool
	log        *zap.Logger
}

// New creates an engine with no serving state. Queries fail with
// ErrIndexNotReady until the first Install or Rebuild.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Snapshot returns the current serving state. Callers keep searching the
// returned state even if a rebuild swaps in a newer one mid-request.
func (e *Engine) Snapshot() (*State, error) {
	st := e.current.Load()
	if st == nil {
		return nil, domain.ErrIndexNotReady
	}
	return st, nil
}

// Status reports the lifecycle phase for health and stats.
func (e *Engine) Status() domain.Status {
	if e.rebuilding.Load() {
		return domain.StatusRebuilding
	}
	if e.current.Load() == nil {
		return domain.StatusUnready
	}
	return domain.StatusReady
}

// Install makes st the serving state. Used at startup after loading
// persisted state; rebuilds go through Rebuild instead.
func (e *Engine) Install(st *State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.swap(st)
}

// Rebuild runs build off to the side and installs its result. The writer
// lock is held for the whole call, so concurrent rebuilds serialize;
// readers keep serving the old state throughout and a failed build leaves
// it untouched.
func (e *Engine) Rebuild(ctx context.Context, build func(context.Context) (*State, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rebuilding.Store(true)
	defer e.rebuilding.Store(false)

	next, err := build(ctx)
	if err != nil {
		e.log.Error("rebuild failed, keeping current state", zap.Error(err))
		return err
	}
	e.swap(next)
	return nil
}

// Stats snapshots the serving counters. The embedding model name is owned
// by the caller's configuration, not by the engine.
func (e *Engine) Stats() domain.Stats {
	status := e.Status()
	st := e.current.Load()
	if st == nil {
		return domain.Stats{Status: status}
	}
	return domain.Stats{
		TotalDocuments:     st.Docs.Len(),
		EmbeddingDimension: st.Index.Dimension(),
		MaxElements:        st.Index.Capacity(),
		CurrentSize:        st.Index.Size(),
		Status:             status,
	}
}

// swap publishes st as the serving generation. Callers hold e.mu.
func (e *Engine) swap(st *State) {
	e.current.Store(st)
	metrics.IndexDocuments.Set(float64(st.Docs.Len()))
	e.log.Info("serving state installed",
		zap.Int("documents", st.Docs.Len()),
		zap.Int("index_size", st.Index.Size()),
		zap.Int("capacity", st.Index.Capacity()),
	)
}
