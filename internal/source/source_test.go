package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semdex-io/semdex/internal/domain/document"
)

type stubSource struct {
	name string
	docs []document.Document
	err  error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) ([]document.Document, error) {
	return s.docs, s.err
}

func stubDoc(t *testing.T, id string) document.Document {
	t.Helper()
	d, err := document.New(id, "Title "+id, "Abstract for "+id+".")
	require.NoError(t, err)
	return d
}

func TestFetchAll_CollectsInOrder(t *testing.T) {
	a := &stubSource{name: "a", docs: []document.Document{stubDoc(t, "a-1"), stubDoc(t, "a-2")}}
	b := &stubSource{name: "b", docs: []document.Document{stubDoc(t, "b-1")}}

	docs := FetchAll(context.Background(), nil, a, b)

	require.Len(t, docs, 3)
	assert.Equal(t, "a-1", docs[0].ID())
	assert.Equal(t, "a-2", docs[1].ID())
	assert.Equal(t, "b-1", docs[2].ID())
}

func TestFetchAll_SkipsFailedSource(t *testing.T) {
	broken := &stubSource{name: "broken", err: errors.New("unreachable")}
	ok := &stubSource{name: "ok", docs: []document.Document{stubDoc(t, "ok-1")}}

	docs := FetchAll(context.Background(), nil, broken, ok)

	require.Len(t, docs, 1)
	assert.Equal(t, "ok-1", docs[0].ID())
}

func TestFetchAll_KeepsPartialResultOfFailedSource(t *testing.T) {
	partial := &stubSource{
		name: "partial",
		docs: []document.Document{stubDoc(t, "p-1")},
		err:  errors.New("aborted midway"),
	}

	docs := FetchAll(context.Background(), nil, partial)

	require.Len(t, docs, 1)
	assert.Equal(t, "p-1", docs[0].ID())
}

func TestFetchAll_NoSources(t *testing.T) {
	assert.Empty(t, FetchAll(context.Background(), nil))
}
