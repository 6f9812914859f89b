package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/index/hnsw"
	"github.com/semdex-io/semdex/internal/persist"
)

// snapshot is the gob payload: build parameters plus the full graph, so a
// loaded index answers queries identically to the saved one.
type snapshot struct {
	Config Config
	Graph  *hnsw.Graph
}

// Save serializes the whole structure to path. The file is written through
// a temp sibling and renamed into place, with the payload zstd-compressed
// inside a checksummed envelope.
func (idx *Index) Save(path string) error {
	var payload bytes.Buffer
	zw, err := zstd.NewWriter(&payload)
	if err != nil {
		return fmt.Errorf("init compressor: %w", err)
	}
	snap := snapshot{Config: idx.Params(), Graph: idx.graph}
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush compressor: %w", err)
	}

	return persist.WriteAtomic(path, func(w io.Writer) error {
		cw := persist.NewChecksumWriter(w)
		header := persist.Header{
			Magic:      persist.MagicIndex,
			Version:    persist.FormatVersion,
			PayloadLen: uint64(payload.Len()),
		}
		if err := persist.WriteHeader(cw, header); err != nil {
			return err
		}
		if _, err := cw.Write(payload.Bytes()); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
		return cw.WriteTrailer()
	})
}

// Load rebuilds an index from a file produced by Save. A missing file is
// reported as os.ErrNotExist so callers can distinguish "never saved" from
// corruption; every other failure wraps domain.ErrCorruptIndex.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrCorruptIndex, path, err)
	}
	defer f.Close()

	cr := persist.NewChecksumReader(f)
	header, err := persist.ReadHeader(cr, persist.MagicIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptIndex, err)
	}

	limited := io.LimitReader(cr, int64(header.PayloadLen))
	zr, err := zstd.NewReader(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: init decompressor: %v", domain.ErrCorruptIndex, err)
	}
	var snap snapshot
	decodeErr := gob.NewDecoder(zr).Decode(&snap)
	zr.Close()
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode index: %v", domain.ErrCorruptIndex, decodeErr)
	}
	// Drain whatever the decoder buffered short of PayloadLen so the
	// running checksum covers the whole payload.
	if _, err := io.Copy(io.Discard, limited); err != nil {
		return nil, fmt.Errorf("%w: drain payload: %v", domain.ErrCorruptIndex, err)
	}
	if err := cr.VerifyTrailer(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptIndex, err)
	}

	if err := snap.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: stored parameters: %v", domain.ErrCorruptIndex, err)
	}
	if snap.Graph == nil {
		return nil, fmt.Errorf("%w: missing graph payload", domain.ErrCorruptIndex)
	}
	if snap.Graph.Dimension() != snap.Config.Dimension {
		return nil, fmt.Errorf("%w: graph dimension %d does not match stored parameters %d",
			domain.ErrCorruptIndex, snap.Graph.Dimension(), snap.Config.Dimension)
	}
	if snap.Graph.Len() > snap.Config.MaxElements {
		return nil, fmt.Errorf("%w: graph holds %d entries over capacity %d",
			domain.ErrCorruptIndex, snap.Graph.Len(), snap.Config.MaxElements)
	}

	idx := &Index{graph: snap.Graph, cfg: snap.Config}
	idx.efSearch.Store(int64(snap.Config.EFSearch))
	return idx, nil
}
