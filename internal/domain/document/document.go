package document

import (
	"fmt"
	"regexp"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// MaxTextSize is the maximum document text size in bytes. Sources feed
// abstracts, not full papers.
const MaxTextSize = 65536 // 64KB

// Document is the paper aggregate (immutable value object). The vector is
// transient ingestion state: it rides along between embedding and index
// insertion and is not part of document identity.
type Document struct {
	id       string
	title    string
	text     string
	authors  []string
	year     int
	venue    string
	keywords []string
	url      string
	source   string
	vector   []float32
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9._:-]+$, 1-256 chars (arXiv ids like "2104.08821" pass).
// Text: non-empty, max 64KB. Metadata defaulting happens at ingestion.
func New(id, title, text string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with dots, colons, underscores and hyphens")
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("text is required")
	}
	if len(text) > MaxTextSize {
		return Document{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}
	if title == "" {
		title = deriveTitle(text)
	}

	return Document{
		id:    id,
		title: title,
		text:  text,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, title, text string, authors []string, year int,
	venue string, keywords []string, url, source string,
) Document {
	return Document{
		id: id, title: title, text: text, authors: authors, year: year,
		venue: venue, keywords: keywords, url: url, source: source,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the paper title.
func (d *Document) Title() string { return d.title }

// Text returns the document text (typically the abstract).
func (d *Document) Text() string { return d.text }

// Authors returns the author list.
func (d *Document) Authors() []string { return d.authors }

// Year returns the publication year, 0 when unknown.
func (d *Document) Year() int { return d.year }

// Venue returns the publication venue.
func (d *Document) Venue() string { return d.venue }

// Keywords returns the keyword list.
func (d *Document) Keywords() []string { return d.keywords }

// URL returns the canonical link to the paper.
func (d *Document) URL() string { return d.url }

// Source returns the ingestion source name ("arxiv", "jsonfile", "synthetic").
func (d *Document) Source() string { return d.source }

// Vector returns the embedding vector attached during ingestion, nil before.
func (d *Document) Vector() []float32 { return d.vector }

// WithMetadata returns a copy with the optional paper metadata set.
func (d *Document) WithMetadata(authors []string, year int, venue string, keywords []string, url, source string) Document {
	c := *d
	c.authors = cloneStrings(authors)
	c.year = year
	c.venue = venue
	c.keywords = cloneStrings(keywords)
	c.url = url
	c.source = source
	return c
}

// WithVector returns a copy with the given vector set.
func (d *Document) WithVector(v []float32) Document {
	c := *d
	c.vector = v
	return c
}

// deriveTitle takes the first sentence-ish prefix of the text as a title
// fallback for sources that ship untitled records.
func deriveTitle(text string) string {
	t := strings.TrimSpace(text)
	if i := strings.IndexAny(t, ".!?\n"); i > 0 {
		t = t[:i]
	}
	const maxTitle = 120
	if len(t) > maxTitle {
		t = t[:maxTitle]
	}
	return t
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
