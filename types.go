package semdex

import (
	"fmt"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/domain/document"
)

// Paper is a document fed into or retrieved from the engine.
type Paper struct {
	ID       string
	Title    string
	Abstract string
	Authors  []string
	Year     int
	Venue    string
	Keywords []string
	URL      string
	Source   string
}

// Query is a similarity-search request. TopK defaults to 5 and Threshold 0
// keeps every hit.
type Query struct {
	Text      string
	TopK      int
	Threshold float32
}

// Result is one search hit. Score = 1 - Distance under cosine distance.
type Result struct {
	Paper    Paper
	Score    float32
	Distance float32
}

// Answer is an extractive answer composed from retrieved documents.
type Answer struct {
	Question    string
	AnswerText  string
	Sources     []Result
	ContextUsed string
}

// Stats is a point-in-time snapshot of the engine.
type Stats struct {
	TotalDocuments     int
	EmbeddingDimension int
	MaxElements        int
	CurrentSize        int
	Status             string
	EmbeddingModel     string
}

func (p Paper) toDocument() (document.Document, error) {
	doc, err := document.New(p.ID, p.Title, p.Abstract)
	if err != nil {
		return document.Document{}, fmt.Errorf("paper %q: %w", p.ID, err)
	}
	return doc.WithMetadata(p.Authors, p.Year, p.Venue, p.Keywords, p.URL, p.Source), nil
}

func paperFromDocument(d document.Document) Paper {
	return Paper{
		ID:       d.ID(),
		Title:    d.Title(),
		Abstract: d.Text(),
		Authors:  d.Authors(),
		Year:     d.Year(),
		Venue:    d.Venue(),
		Keywords: d.Keywords(),
		URL:      d.URL(),
		Source:   d.Source(),
	}
}

func resultsFromDomain(results []domain.SearchResult) []Result {
	out := make([]Result, len(results))
	for i := range results {
		out[i] = Result{
			Paper:    paperFromDocument(results[i].Document),
			Score:    results[i].Score,
			Distance: results[i].Distance,
		}
	}
	return out
}
