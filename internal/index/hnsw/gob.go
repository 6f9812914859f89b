package hnsw

import (
	"bytes"
	"encoding/gob"

	"github.com/semdex-io/semdex/internal/vecmath"
)

// Compile time checks to ensure Graph satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*Graph)(nil)
	_ gob.GobDecoder = (*Graph)(nil)
)

// GobEncode serializes the whole graph: parameters first, then all nodes with
// their per-layer neighbor lists. DistanceFunc is not serializable and is
// restored to the normalized-cosine default on decode.
func (g *Graph) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	fields := []any{
		g.dimension,
		g.mmax,
		g.mmax0,
		g.ml,
		g.ep,
		g.maxLevel,
		g.opts.M,
		g.opts.EFConstruction,
		g.opts.Heuristic,
		g.nodes,
	}
	for _, f := range fields {
		if err := encoder.Encode(f); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// GobDecode reconstructs a graph serialized by GobEncode. The result answers
// searches identically to the encoded graph: same nodes, same neighbor sets,
// same entry point.
func (g *Graph) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	fields := []any{
		&g.dimension,
		&g.mmax,
		&g.mmax0,
		&g.ml,
		&g.ep,
		&g.maxLevel,
		&g.opts.M,
		&g.opts.EFConstruction,
		&g.opts.Heuristic,
		&g.nodes,
	}
	for _, f := range fields {
		if err := decoder.Decode(f); err != nil {
			return err
		}
	}

	g.opts.DistanceFunc = vecmath.NormalizedCosineDistance

	return nil
}
