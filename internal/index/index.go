// Package index wraps the HNSW graph with capacity accounting, cosine
// normalization, query-time tuning, and whole-structure persistence.
//
// Concurrency contract: Search and EFSearch are safe for concurrent use.
// Add and AddBatch must not run concurrently with each other or with
// Search on the same Index; the retrieval engine only mutates off-side
// structures and swaps them in atomically once complete.
package index

import (
	"fmt"
	"sync/atomic"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/index/hnsw"
	"github.com/semdex-io/semdex/internal/vecmath"
)

// Config holds the index build parameters. The distance metric is fixed to
// cosine: vectors are L2-normalized on insertion and queries on search, so
// stored distances are 1 - dot(a, b).
type Config struct {
	Dimension      int `yaml:"dimension"`
	MaxElements    int `yaml:"max_elements"`
	M              int `yaml:"m"`
	EFConstruction int `yaml:"ef_construction"`
	EFSearch       int `yaml:"ef_search"`
}

// ApplyDefaults fills zero-valued tuning parameters. Dimension and
// MaxElements have no defaults: they are deployment decisions.
func (c *Config) ApplyDefaults() {
	if c.M == 0 {
		c.M = 16
	}
	if c.EFConstruction == 0 {
		c.EFConstruction = 200
	}
	if c.EFSearch == 0 {
		c.EFSearch = 50
	}
}

// Validate checks the parameters, wrapping domain.ErrConfiguration.
func (c Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrConfiguration, c.Dimension)
	}
	if c.MaxElements <= 0 {
		return fmt.Errorf("%w: max_elements must be positive, got %d", domain.ErrConfiguration, c.MaxElements)
	}
	if c.M < 2 {
		return fmt.Errorf("%w: M must be at least 2, got %d", domain.ErrConfiguration, c.M)
	}
	if c.EFConstruction < c.M {
		return fmt.Errorf("%w: ef_construction %d must not be below M %d", domain.ErrConfiguration, c.EFConstruction, c.M)
	}
	if c.EFSearch <= 0 {
		return fmt.Errorf("%w: ef_search must be positive, got %d", domain.ErrConfiguration, c.EFSearch)
	}
	return nil
}

// Index is an ANN structure over fixed-dimension embeddings with integer
// identifiers assigned monotonically from zero.
type Index struct {
	graph    *hnsw.Graph
	cfg      Config
	efSearch atomic.Int64
}

// New allocates an empty index.
func New(cfg Config) (*Index, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := hnsw.New(cfg.Dimension, func(o *hnsw.Options) {
		o.M = cfg.M
		o.EFConstruction = cfg.EFConstruction
		o.Heuristic = true
		o.DistanceFunc = vecmath.NormalizedCosineDistance
	})

	idx := &Index{graph: g, cfg: cfg}
	idx.efSearch.Store(int64(cfg.EFSearch))
	return idx, nil
}

// Size returns the number of stored entries.
func (idx *Index) Size() int { return idx.graph.Len() }

// Capacity returns the configured maximum number of entries.
func (idx *Index) Capacity() int { return idx.cfg.MaxElements }

// Dimension returns the configured vector dimensionality.
func (idx *Index) Dimension() int { return idx.cfg.Dimension }

// Params returns the build parameters with the current ef_search value.
func (idx *Index) Params() Config {
	cfg := idx.cfg
	cfg.EFSearch = int(idx.efSearch.Load())
	return cfg
}

// SetEFSearch tunes the query-time search width. Takes effect on subsequent
// searches only; values below 1 are clamped.
func (idx *Index) SetEFSearch(ef int) {
	if ef < 1 {
		ef = 1
	}
	idx.efSearch.Store(int64(ef))
}

// EFSearch returns the current query-time search width.
func (idx *Index) EFSearch() int { return int(idx.efSearch.Load()) }

// Add normalizes and inserts one embedding, returning its internal id.
// A failed insertion leaves the index size unchanged.
func (idx *Index) Add(vector []float32) (uint32, error) {
	if err := idx.checkVector(vector); err != nil {
		return 0, err
	}
	if idx.graph.Len()+1 > idx.cfg.MaxElements {
		return 0, domain.NewCapacityExceeded(idx.graph.Len(), idx.cfg.MaxElements)
	}
	return idx.graph.Insert(normalized(vector))
}

// AddBatch inserts embeddings in order, returning their internal ids.
// Validation is performed up front so a batch that cannot fit, or that
// contains a malformed vector, fails before any entry is inserted.
func (idx *Index) AddBatch(vectors [][]float32) ([]uint32, error) {
	for _, v := range vectors {
		if err := idx.checkVector(v); err != nil {
			return nil, err
		}
	}
	if idx.graph.Len()+len(vectors) > idx.cfg.MaxElements {
		return nil, domain.NewCapacityExceeded(idx.graph.Len(), idx.cfg.MaxElements)
	}

	ids := make([]uint32, 0, len(vectors))
	for _, v := range vectors {
		id, err := idx.graph.Insert(normalized(v))
		if err != nil {
			return nil, fmt.Errorf("insert %d of %d: %w", len(ids)+1, len(vectors), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Search returns up to k nearest entries by ascending cosine distance. An
// index holding fewer than k entries yields them all; an empty index yields
// an empty result, never an error.
func (idx *Index) Search(query []float32, k int) ([]hnsw.Candidate, error) {
	if err := idx.checkVector(query); err != nil {
		return nil, err
	}
	return idx.graph.SearchKNN(normalized(query), k, idx.EFSearch())
}

// Vector returns the normalized stored vector for an internal id.
func (idx *Index) Vector(id uint32) ([]float32, bool) {
	return idx.graph.Vector(id)
}

func (idx *Index) checkVector(v []float32) error {
	if len(v) != idx.cfg.Dimension {
		return domain.NewDimensionMismatch(idx.cfg.Dimension, len(v))
	}
	return nil
}

// normalized copies v and scales the copy to unit length. Zero vectors stay
// as-is: under the 1-dot convention they rank last instead of erroring.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	vecmath.NormalizeL2InPlace(out)
	return out
}
