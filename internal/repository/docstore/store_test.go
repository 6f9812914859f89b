package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/domain/document"
)

func mustDoc(t *testing.T, id, title, text string) document.Document {
	t.Helper()
	doc, err := document.New(id, title, text)
	require.NoError(t, err)
	return doc
}

func TestPut_AssignsSequentialIDs(t *testing.T) {
	s := New()

	require.NoError(t, s.Put(0, mustDoc(t, "2104.08821", "SimCSE", "Contrastive sentence embeddings.")))
	require.NoError(t, s.Put(1, mustDoc(t, "1810.04805", "BERT", "Bidirectional transformers for language understanding.")))

	assert.Equal(t, 2, s.Len())

	doc, err := s.ByInternalID(1)
	require.NoError(t, err)
	assert.Equal(t, "1810.04805", doc.ID())
}

func TestPut_OutOfOrderFails(t *testing.T) {
	s := New()

	err := s.Put(3, mustDoc(t, "a", "", "some text"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 0, s.Len())
}

func TestPut_DuplicateDocumentIDFails(t *testing.T) {
	s := New()

	require.NoError(t, s.Put(0, mustDoc(t, "dup", "", "first text")))
	err := s.Put(1, mustDoc(t, "dup", "", "second text"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 1, s.Len())
}

func TestByInternalID_Missing(t *testing.T) {
	s := New()

	_, err := s.ByInternalID(0)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestByDocumentID(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(0, mustDoc(t, "first", "", "alpha text")))
	require.NoError(t, s.Put(1, mustDoc(t, "second", "", "beta text")))

	doc, internalID, err := s.ByDocumentID("second")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), internalID)
	assert.Equal(t, "beta text", doc.Text())

	_, _, err = s.ByDocumentID("missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestContains(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(0, mustDoc(t, "known", "", "some text")))

	assert.True(t, s.Contains("known"))
	assert.False(t, s.Contains("unknown"))
}

func TestEach_VisitsInOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(0, mustDoc(t, "a", "", "text a")))
	require.NoError(t, s.Put(1, mustDoc(t, "b", "", "text b")))
	require.NoError(t, s.Put(2, mustDoc(t, "c", "", "text c")))

	var ids []string
	s.Each(func(internalID uint32, doc document.Document) bool {
		assert.Equal(t, uint32(len(ids)), internalID)
		ids = append(ids, doc.ID())
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestEach_StopsEarly(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(0, mustDoc(t, "a", "", "text a")))
	require.NoError(t, s.Put(1, mustDoc(t, "b", "", "text b")))

	visits := 0
	s.Each(func(uint32, document.Document) bool {
		visits++
		return false
	})
	assert.Equal(t, 1, visits)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := New()
	base, err := document.New("2104.08821", "SimCSE", "Simple contrastive learning of sentence embeddings.")
	require.NoError(t, err)
	full := base.WithMetadata(
		[]string{"Gao", "Yao", "Chen"}, 2021, "EMNLP",
		[]string{"contrastive", "embeddings"}, "https://arxiv.org/abs/2104.08821", "arxiv",
	)
	require.NoError(t, s.Put(0, full))
	require.NoError(t, s.Put(1, mustDoc(t, "plain", "", "A record with defaults only.")))

	path := filepath.Join(t.TempDir(), "documents.bin")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())

	doc, err := loaded.ByInternalID(0)
	require.NoError(t, err)
	assert.Equal(t, "2104.08821", doc.ID())
	assert.Equal(t, "SimCSE", doc.Title())
	assert.Equal(t, []string{"Gao", "Yao", "Chen"}, doc.Authors())
	assert.Equal(t, 2021, doc.Year())
	assert.Equal(t, "EMNLP", doc.Venue())
	assert.Equal(t, "arxiv", doc.Source())

	_, internalID, err := loaded.ByDocumentID("plain")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), internalID)
}

func TestSaveLoad_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.bin")
	require.NoError(t, New().Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
	assert.NotErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestLoad_CorruptPayload(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(0, mustDoc(t, "a", "", "text a")))

	path := filepath.Join(t.TempDir(), "documents.bin")
	require.NoError(t, s.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Load(path)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestLoad_WrongMagic(t *testing.T) {
	// An index file is not a documents file even when structurally valid.
	s := New()
	require.NoError(t, s.Put(0, mustDoc(t, "a", "", "text a")))

	dir := t.TempDir()
	path := filepath.Join(dir, "documents.bin")
	require.NoError(t, s.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(raw[:4], "SDX1")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Load(path)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}
