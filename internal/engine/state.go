package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/index"
	"github.com/semdex-io/semdex/internal/repository/docstore"
)

// File names inside the data directory. The two files are a pair: entry N
// of the index is document N of the table.
const (
	IndexFile     = "index.bin"
	DocumentsFile = "documents.bin"
)

// State is one immutable serving generation: a vector index and the
// document table built alongside it. Once installed it is never mutated;
// rebuilds produce a new State and swap it in whole.
type State struct {
	Index *index.Index
	Docs  *docstore.Store
}

// NewState pairs an index with its document table. Sizes must agree or
// the join key is broken.
func NewState(idx *index.Index, docs *docstore.Store) (*State, error) {
	if idx == nil || docs == nil {
		return nil, fmt.Errorf("%w: state requires both index and documents", domain.ErrConfiguration)
	}
	if idx.Size() != docs.Len() {
		return nil, fmt.Errorf("%w: index holds %d entries but document table holds %d",
			domain.ErrConfiguration, idx.Size(), docs.Len())
	}
	return &State{Index: idx, Docs: docs}, nil
}

// LoadState loads the index and document pair from dir. Both files absent
// means no state was ever saved and is reported as os.ErrNotExist; one
// file without the other, or a size mismatch between them, is corruption.
func LoadState(dir string) (*State, error) {
	idx, idxErr := index.Load(filepath.Join(dir, IndexFile))
	docs, docsErr := docstore.Load(filepath.Join(dir, DocumentsFile))

	switch {
	case idxErr == nil && docsErr == nil:
		// pair loaded
	case os.IsNotExist(idxErr) && os.IsNotExist(docsErr):
		return nil, idxErr
	case os.IsNotExist(idxErr):
		return nil, fmt.Errorf("%w: documents file present but index file missing in %s",
			domain.ErrCorruptIndex, dir)
	case os.IsNotExist(docsErr):
		return nil, fmt.Errorf("%w: index file present but documents file missing in %s",
			domain.ErrCorruptIndex, dir)
	case idxErr != nil:
		return nil, idxErr
	default:
		return nil, docsErr
	}

	if idx.Size() != docs.Len() {
		return nil, fmt.Errorf("%w: index holds %d entries but document table holds %d",
			domain.ErrCorruptIndex, idx.Size(), docs.Len())
	}
	return &State{Index: idx, Docs: docs}, nil
}

// SaveState writes both files of the pair into dir. Each file is written
// atomically; a crash between the two leaves a size mismatch that the next
// load reports as corruption, which a rebuild repairs.
func SaveState(dir string, st *State) error {
	if err := st.Docs.Save(filepath.Join(dir, DocumentsFile)); err != nil {
		return fmt.Errorf("save documents: %w", err)
	}
	if err := st.Index.Save(filepath.Join(dir, IndexFile)); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}
