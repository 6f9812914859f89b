// Package source acquires research papers for ingestion. Sources are
// best-effort: acquisition failures are logged and skipped, and malformed
// records are dropped individually rather than failing the whole fetch.
// Deduplication happens downstream in the ingest use case.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain/document"
)

// Source yields documents from one acquisition backend.
type Source interface {
	// Name identifies the source in logs and document metadata.
	Name() string
	// Fetch acquires documents. Implementations honor ctx cancellation.
	Fetch(ctx context.Context) ([]document.Document, error)
}

// FetchAll collects documents from every source in order. A failing source
// is logged and skipped; whatever it returned before failing is kept.
func FetchAll(ctx context.Context, log *zap.Logger, sources ...Source) []document.Document {
	if log == nil {
		log = zap.NewNop()
	}

	var all []document.Document
	for _, src := range sources {
		docs, err := src.Fetch(ctx)
		if err != nil {
			log.Warn("source fetch failed",
				zap.String("source", src.Name()),
				zap.Int("partial", len(docs)),
				zap.Error(err),
			)
		}
		if len(docs) > 0 {
			log.Info("source fetched",
				zap.String("source", src.Name()),
				zap.Int("documents", len(docs)),
			)
			all = append(all, docs...)
		}
	}
	return all
}

// paperRecord is the interchange JSON shape for paper records, shared by the
// file source and by anything exporting corpora for reimport.
type paperRecord struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Venue    string   `json:"venue,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	URL      string   `json:"url,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// toDocument validates the record. sourceName fills the source field for
// records that do not carry their own.
func (r paperRecord) toDocument(sourceName string) (document.Document, error) {
	doc, err := document.New(r.ID, r.Title, r.Abstract)
	if err != nil {
		return document.Document{}, fmt.Errorf("record %q: %w", r.ID, err)
	}
	src := r.Source
	if src == "" {
		src = sourceName
	}
	return doc.WithMetadata(r.Authors, r.Year, r.Venue, r.Keywords, r.URL, src), nil
}
