package domain

import "github.com/semdex-io/semdex/internal/domain/document"

// KeyPrefix namespaces every key this service writes to the shared KV store.
const KeyPrefix = "semdex:"

// Query bounds applied by the retrieval service.
const (
	DefaultTopK = 5
	MaxTopK     = 100
)

// Query is a retrieval request. TopK defaults to DefaultTopK and is capped
// at MaxTopK; Threshold 0 keeps every hit.
type Query struct {
	Text      string
	TopK      int
	Threshold float32 // minimum score in [0,1]
}

// SearchResult is a single retrieval hit joined with its stored document.
// Score = 1 - Distance under cosine distance.
type SearchResult struct {
	Document document.Document
	Score    float32
	Distance float32
}

// Answer is the outcome of extractive answer composition. AnswerText is
// selected from retrieved document text, never generated.
type Answer struct {
	Question    string
	AnswerText  string
	Sources     []SearchResult
	ContextUsed string
}

// Status is the retrieval engine lifecycle state.
type Status string

// Engine states. Queries in StatusUnready fail with ErrIndexNotReady;
// StatusRebuilding still serves queries against the previous structure.
const (
	StatusUnready    Status = "unready"
	StatusReady      Status = "ready"
	StatusRebuilding Status = "rebuilding"
)

// IsValid checks if the status is one of the supported values.
func (s Status) IsValid() bool {
	return s == StatusUnready || s == StatusReady || s == StatusRebuilding
}

// Stats is a point-in-time snapshot of the engine and its index.
type Stats struct {
	TotalDocuments     int
	EmbeddingDimension int
	MaxElements        int
	CurrentSize        int
	Status             Status
	EmbeddingModel     string
}
