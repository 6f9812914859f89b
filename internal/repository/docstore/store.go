// Package docstore holds the in-memory document table that parallels the
// vector index: internal id N in the index resolves to position N here.
// The store is append-only and, like the index, built off to the side and
// swapped in whole; once serving it is read-only and safe for concurrent
// readers.
package docstore

import (
	"fmt"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/domain/document"
)

// Store maps internal ids to documents and document ids back to internal
// ids. Internal ids must arrive in insertion order so the table never
// drifts from the index that assigned them.
type Store struct {
	docs  []document.Document
	byKey map[string]uint32
}

// New creates an empty store.
func New() *Store {
	return &Store{byKey: make(map[string]uint32)}
}

// NewWithCapacity creates an empty store with room for n documents.
func NewWithCapacity(n int) *Store {
	return &Store{
		docs:  make([]document.Document, 0, n),
		byKey: make(map[string]uint32, n),
	}
}

// Put records doc under internalID. Ids must be exactly sequential
// (0, 1, 2, ...) and document ids unique; a gap, a reuse or a duplicate
// means the caller lost sync with the index and is reported as a
// configuration error.
func (s *Store) Put(internalID uint32, doc document.Document) error {
	if int(internalID) != len(s.docs) {
		return fmt.Errorf("%w: internal id %d out of order, expected %d",
			domain.ErrConfiguration, internalID, len(s.docs))
	}
	if _, exists := s.byKey[doc.ID()]; exists {
		return fmt.Errorf("%w: duplicate document id %q", domain.ErrConfiguration, doc.ID())
	}
	s.docs = append(s.docs, doc)
	s.byKey[doc.ID()] = internalID
	return nil
}

// ByInternalID returns the document stored under an index-assigned id.
func (s *Store) ByInternalID(id uint32) (document.Document, error) {
	if int(id) >= len(s.docs) {
		return document.Document{}, fmt.Errorf("%w: internal id %d", domain.ErrDocumentNotFound, id)
	}
	return s.docs[id], nil
}

// ByDocumentID returns the document and its internal id for an external
// document id.
func (s *Store) ByDocumentID(id string) (document.Document, uint32, error) {
	internalID, ok := s.byKey[id]
	if !ok {
		return document.Document{}, 0, fmt.Errorf("%w: %q", domain.ErrDocumentNotFound, id)
	}
	return s.docs[internalID], internalID, nil
}

// Contains reports whether a document id is already stored.
func (s *Store) Contains(id string) bool {
	_, ok := s.byKey[id]
	return ok
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	return len(s.docs)
}

// Each calls fn for every document in internal id order, stopping early
// if fn returns false.
func (s *Store) Each(fn func(internalID uint32, doc document.Document) bool) {
	for i := range s.docs {
		if !fn(uint32(i), s.docs[i]) {
			return
		}
	}
}
