package sdk

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k,omitempty"`
	Threshold float32 `json:"threshold,omitempty"`
}

// SearchResponse is the body of a successful POST /search.
type SearchResponse struct {
	Query      string   `json:"query"`
	Results    []Result `json:"results"`
	TotalFound int      `json:"total_found"`
	Returned   int      `json:"returned"`
}

// Result is one search hit with its document attached.
type Result struct {
	DocumentID string   `json:"document_id"`
	Document   Document `json:"document"`
	Score      float32  `json:"score"`
	Distance   float32  `json:"distance"`
}

// Document is the paper metadata stored alongside the index.
type Document struct {
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

// QARequest is the body of POST /qa.
type QARequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// QAResponse is the body of a successful POST /qa. Answer is extractive:
// sentences selected from the retrieved context, never generated.
type QAResponse struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Sources     []Result `json:"sources"`
	ContextUsed string   `json:"context_used"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	TotalDocuments     int    `json:"total_documents"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	MaxElements        int    `json:"max_elements"`
	CurrentSize        int    `json:"current_size"`
	Status             string `json:"status"`
	EmbeddingModel     string `json:"embedding_model"`
}

// ReindexResponse is the body of a successful POST /reindex.
type ReindexResponse struct {
	Status           string `json:"status"`
	DocumentsIndexed int    `json:"documents_indexed"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
