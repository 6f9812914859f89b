package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic_Deterministic(t *testing.T) {
	first, err := NewSynthetic(40, 7).Fetch(context.Background())
	require.NoError(t, err)
	second, err := NewSynthetic(40, 7).Fetch(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID(), second[i].ID())
		assert.Equal(t, first[i].Title(), second[i].Title())
		assert.Equal(t, first[i].Authors(), second[i].Authors())
		assert.Equal(t, first[i].Year(), second[i].Year())
		assert.Equal(t, first[i].Keywords(), second[i].Keywords())
	}
}

func TestSynthetic_FirstPaperMatchesTemplate(t *testing.T) {
	docs, err := NewSynthetic(1, 1).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Equal(t, "paper_000000", d.ID())
	assert.Equal(t, "Advanced Machine Learning: A Novel Approach to neural networks", d.Title())
	assert.Contains(t, d.Text(), "novel approach to machine learning")
	assert.Contains(t, d.Text(), "existing techniques in neural networks")
	assert.Equal(t, "NIPS", d.Venue())
	assert.Equal(t, "https://example.com/paper_000000", d.URL())
	assert.Equal(t, "synthetic", d.Source())
}

func TestSynthetic_TemplatesRotate(t *testing.T) {
	docs, err := NewSynthetic(8, 1).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 8)

	// Paper i draws template i%5 and that template's domain i%3.
	assert.Contains(t, docs[1].Title(), "Image Processing")
	assert.Contains(t, docs[2].Title(), "Language Models")
	assert.Contains(t, docs[3].Title(), "Robotics")
	assert.Contains(t, docs[4].Title(), "Game Theory")
	assert.Contains(t, docs[5].Title(), "Neural Networks")
	assert.Contains(t, docs[6].Title(), "Computer Vision")
	assert.Contains(t, docs[7].Title(), "Text Mining")
}

func TestSynthetic_TitlesUniqueAcrossCycles(t *testing.T) {
	docs, err := NewSynthetic(150, 3).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 150)

	titles := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		titles[strings.ToLower(strings.TrimSpace(d.Title()))] = struct{}{}
	}
	assert.Len(t, titles, 150, "title dedup must not collapse generated papers")
}

func TestSynthetic_FieldBounds(t *testing.T) {
	docs, err := NewSynthetic(200, 11).Fetch(context.Background())
	require.NoError(t, err)

	for _, d := range docs {
		if n := len(d.Authors()); n < 1 || n > 4 {
			t.Fatalf("paper %s has %d authors", d.ID(), n)
		}
		if y := d.Year(); y < 2015 || y > 2024 {
			t.Fatalf("paper %s has year %d", d.ID(), y)
		}
		if k := len(d.Keywords()); k < 2 || k > 4 {
			t.Fatalf("paper %s has %d keywords", d.ID(), k)
		}
	}
}

func TestSynthetic_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSynthetic(100000, 1).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
