package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePapersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papers.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestJSONFile_BareArray(t *testing.T) {
	path := writePapersFile(t, `[
		{
			"id": "2104.08821",
			"title": "SimCSE: Simple Contrastive Learning of Sentence Embeddings",
			"abstract": "This paper presents SimCSE, a simple contrastive learning framework.",
			"authors": ["Tianyu Gao", "Xingcheng Yao", "Danqi Chen"],
			"year": 2021,
			"venue": "EMNLP",
			"keywords": ["contrastive learning", "sentence embeddings"],
			"url": "https://arxiv.org/abs/2104.08821"
		}
	]`)

	docs, err := NewJSONFile(path, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Equal(t, "2104.08821", d.ID())
	assert.Equal(t, "SimCSE: Simple Contrastive Learning of Sentence Embeddings", d.Title())
	assert.Equal(t, []string{"Tianyu Gao", "Xingcheng Yao", "Danqi Chen"}, d.Authors())
	assert.Equal(t, 2021, d.Year())
	assert.Equal(t, "EMNLP", d.Venue())
	assert.Equal(t, "https://arxiv.org/abs/2104.08821", d.URL())
	assert.Equal(t, "jsonfile", d.Source())
}

func TestJSONFile_PapersWrapper(t *testing.T) {
	path := writePapersFile(t, `{"papers": [
		{"id": "p-1", "title": "First Paper", "abstract": "First abstract."},
		{"id": "p-2", "title": "Second Paper", "abstract": "Second abstract."}
	]}`)

	docs, err := NewJSONFile(path, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p-1", docs[0].ID())
	assert.Equal(t, "p-2", docs[1].ID())
}

func TestJSONFile_RecordSourceWins(t *testing.T) {
	path := writePapersFile(t, `[
		{"id": "k-1", "title": "Kept Source", "abstract": "Record carries its origin.", "source": "kaggle"}
	]`)

	docs, err := NewJSONFile(path, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "kaggle", docs[0].Source())
}

func TestJSONFile_DerivesMissingTitle(t *testing.T) {
	path := writePapersFile(t, `[
		{"id": "n-1", "abstract": "Untitled record about graph algorithms. Further details follow."}
	]`)

	docs, err := NewJSONFile(path, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Untitled record about graph algorithms", docs[0].Title())
}

func TestJSONFile_DropsInvalidRecords(t *testing.T) {
	path := writePapersFile(t, `[
		{"id": "", "title": "No ID", "abstract": "Dropped."},
		{"id": "ok-1", "title": "Valid Paper", "abstract": "Kept."},
		{"id": "bad id", "title": "Spaced ID", "abstract": "Dropped too."},
		{"id": "no-text", "title": "Empty Abstract", "abstract": "   "}
	]`)

	docs, err := NewJSONFile(path, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "ok-1", docs[0].ID())
}

func TestJSONFile_MissingFile(t *testing.T) {
	src := NewJSONFile(filepath.Join(t.TempDir(), "absent.json"), nil)
	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestJSONFile_MalformedJSON(t *testing.T) {
	path := writePapersFile(t, `{"papers": 42}`)
	_, err := NewJSONFile(path, nil).Fetch(context.Background())
	assert.Error(t, err)
}
