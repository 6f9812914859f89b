package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/semdex-io/semdex/internal/domain/document"
)

// DefaultArxivQuery selects the CS categories of the original deployment.
const DefaultArxivQuery = "cat:cs.AI OR cat:cs.CV OR cat:cs.LG OR cat:cs.CL OR cat:cs.RO"

const (
	arxivBaseURL  = "http://export.arxiv.org/api/query"
	arxivPageSize = 100
)

// Arxiv fetches paper metadata from the arXiv Atom API. Requests are rate
// limited to one per three seconds per the API usage policy.
type Arxiv struct {
	query      string
	maxResults int
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewArxiv creates an arXiv source. An empty query selects
// DefaultArxivQuery; client nil gets a 30s-timeout default.
func NewArxiv(query string, maxResults int, client *http.Client, log *zap.Logger) *Arxiv {
	if query == "" {
		query = DefaultArxivQuery
	}
	if maxResults <= 0 {
		maxResults = 1000
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Arxiv{
		query:      query,
		maxResults: maxResults,
		baseURL:    arxivBaseURL,
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(3*time.Second), 1),
		log:        log,
	}
}

// Name implements Source.
func (s *Arxiv) Name() string { return "arxiv" }

// Fetch pages through the feed up to maxResults. A page failure after the
// first keeps what was already fetched.
func (s *Arxiv) Fetch(ctx context.Context) ([]document.Document, error) {
	var docs []document.Document
	for start := 0; start < s.maxResults; start += arxivPageSize {
		count := arxivPageSize
		if remaining := s.maxResults - start; remaining < count {
			count = remaining
		}

		entries, err := s.fetchPage(ctx, start, count)
		if err != nil {
			if len(docs) > 0 {
				s.log.Warn("arxiv paging aborted",
					zap.Int("fetched", len(docs)),
					zap.Error(err),
				)
				return docs, nil
			}
			return nil, err
		}

		for _, e := range entries {
			doc, err := e.toDocument()
			if err != nil {
				s.log.Warn("dropping arxiv entry", zap.String("entry", e.ID), zap.Error(err))
				continue
			}
			docs = append(docs, doc)
		}

		if len(entries) < count {
			break
		}
	}
	return docs, nil
}

func (s *Arxiv) fetchPage(ctx context.Context, start, count int) ([]atomEntry, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("search_query", s.query)
	q.Set("start", strconv.Itoa(start))
	q.Set("max_results", strconv.Itoa(count))
	q.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building arxiv request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding arxiv feed: %w", err)
	}
	return feed.Entries, nil
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// toDocument maps an Atom entry. The document id is the arXiv id from the
// entry URL tail, stable across fetches; old-style ids contain a slash,
// which the id charset forbids, so it folds to a dot.
func (e atomEntry) toDocument() (document.Document, error) {
	id := e.ID
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	id = strings.ReplaceAll(id, "/", ".")

	doc, err := document.New(id, collapseSpace(e.Title), collapseSpace(e.Summary))
	if err != nil {
		return document.Document{}, err
	}

	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	var keywords []string
	for _, c := range e.Categories {
		if c.Term != "" {
			keywords = append(keywords, c.Term)
		}
	}

	year := 0
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		year = t.Year()
	}

	return doc.WithMetadata(authors, year, "arXiv", keywords, e.ID, "arxiv"), nil
}

// collapseSpace folds the newlines and indentation arXiv wraps long fields
// with.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
