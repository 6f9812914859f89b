package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/domain/document"
	"github.com/semdex-io/semdex/internal/logger"
	healthuc "github.com/semdex-io/semdex/internal/usecase/health"
	ingestuc "github.com/semdex-io/semdex/internal/usecase/ingest"
	retrievaluc "github.com/semdex-io/semdex/internal/usecase/retrieval"
)

// Error codes carried in the JSON error envelope.
const (
	codeBadRequest    = "bad_request"
	codeInvalidQuery  = "invalid_query"
	codeEncoding      = "encoding_failed"
	codeIndexNotReady = "index_not_ready"
	codeTimeout       = "timeout"
	codeRateLimited   = "rate_limited"
	codeQuotaExceeded = "embedding_quota_exceeded"
	codeProviderError = "embedding_provider_error"
	codeInternalError = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the retrieval API over HTTP.
type Server struct {
	retrieval     *retrievaluc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval *retrievaluc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		retrieval: retrieval,
		ingest:    ingest,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrEncoding, http.StatusBadRequest, codeEncoding),
		sentinelHandler(domain.ErrIndexNotReady, http.StatusServiceUnavailable, codeIndexNotReady),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Register mounts the API routes. Middleware is attached by the caller so
// route patterns stay visible to the metrics middleware.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.Root)
	r.Post("/search", s.Search)
	r.Post("/qa", s.QA)
	r.Get("/stats", s.Stats)
	r.Post("/reindex", s.Reindex)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type searchRequest struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k"`
	Threshold float32 `json:"threshold"`
}

type searchResponse struct {
	Query      string          `json:"query"`
	Results    []resultPayload `json:"results"`
	TotalFound int             `json:"total_found"`
	Returned   int             `json:"returned"`
}

type qaRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type qaResponse struct {
	Question    string          `json:"question"`
	Answer      string          `json:"answer"`
	Sources     []resultPayload `json:"sources"`
	ContextUsed string          `json:"context_used"`
}

type statsResponse struct {
	TotalDocuments     int    `json:"total_documents"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	MaxElements        int    `json:"max_elements"`
	CurrentSize        int    `json:"current_size"`
	Status             string `json:"status"`
	EmbeddingModel     string `json:"embedding_model"`
}

type reindexResponse struct {
	Status           string `json:"status"`
	DocumentsIndexed int    `json:"documents_indexed"`
}

type resultPayload struct {
	DocumentID string          `json:"document_id"`
	Document   documentPayload `json:"document"`
	Score      float32         `json:"score"`
	Distance   float32         `json:"distance"`
}

// documentPayload mirrors the ingestion record shape, so a retrieved
// document round-trips through the jsonfile source unchanged.
type documentPayload struct {
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

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Vector Similarity Search API is running!",
	})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	results, totalFound, err := s.retrieval.Search(r.Context(), domain.Query{
		Text:      req.Query,
		TopK:      req.TopK,
		Threshold: req.Threshold,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:      req.Query,
		Results:    resultsToPayload(results),
		TotalFound: totalFound,
		Returned:   len(results),
	})
}

// QA handles POST /qa.
func (s *Server) QA(w http.ResponseWriter, r *http.Request) {
	var req qaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	answer, err := s.retrieval.Answer(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, qaResponse{
		Question:    answer.Question,
		Answer:      answer.AnswerText,
		Sources:     resultsToPayload(answer.Sources),
		ContextUsed: answer.ContextUsed,
	})
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats := s.retrieval.Stats()

	writeJSON(w, http.StatusOK, statsResponse{
		TotalDocuments:     stats.TotalDocuments,
		EmbeddingDimension: stats.EmbeddingDimension,
		MaxElements:        stats.MaxElements,
		CurrentSize:        stats.CurrentSize,
		Status:             string(stats.Status),
		EmbeddingModel:     stats.EmbeddingModel,
	})
}

// Reindex handles POST /reindex. The rebuild is synchronous: the response
// reports how many documents the fresh structure holds.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	indexed, err := s.ingest.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reindexResponse{
		Status:           "ok",
		DocumentsIndexed: indexed,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func resultsToPayload(results []domain.SearchResult) []resultPayload {
	items := make([]resultPayload, len(results))
	for i := range results {
		items[i] = resultPayload{
			DocumentID: results[i].Document.ID(),
			Document:   documentToPayload(results[i].Document),
			Score:      results[i].Score,
			Distance:   results[i].Distance,
		}
	}
	return items
}

func documentToPayload(d document.Document) documentPayload {
	return documentPayload{
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: errorBody{
			Code:    code,
			Message: message,
		},
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrEncoding,
		domain.ErrIndexNotReady,
		domain.ErrTimeout,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
