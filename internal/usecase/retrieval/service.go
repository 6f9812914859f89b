// Package retrieval answers queries against the serving index: embed the
// query, walk the vector index, join survivors against the document table,
// and optionally compose a short extractive answer from the retrieved text.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/metrics"
)

const (
	// DefaultRequestTimeout bounds embedding plus search per request.
	DefaultRequestTimeout = 5 * time.Second
	// DefaultQAMinScore is the relevance floor for answer composition: when
	// the best hit scores below it, the corpus does not cover the question.
	DefaultQAMinScore = 0.25
	// DefaultQAMaxContextChars bounds the context assembled for an answer.
	DefaultQAMaxContextChars = 2000

	qaMinTopK          = 3
	qaMaxTopK          = 5
	maxAnswerSentences = 3
)

// InsufficientContextAnswer is returned verbatim when no indexed document
// is relevant enough to answer from.
const InsufficientContextAnswer = "The indexed documents do not contain enough relevant information to answer this question."

// Options tunes the service. Zero values fall back to the defaults above.
type Options struct {
	Model             string
	RequestTimeout    time.Duration
	QAMinScore        float32
	QAMaxContextChars int
}

// ApplyDefaults fills unset options.
func (o *Options) ApplyDefaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.QAMinScore <= 0 {
		o.QAMinScore = DefaultQAMinScore
	}
	if o.QAMaxContextChars <= 0 {
		o.QAMaxContextChars = DefaultQAMaxContextChars
	}
}

// Service is the retrieval orchestrator.
type Service struct {
	states  StateProvider
	embed   Embedder
	extract *extractor
	opts    Options
	log     *zap.Logger
}

// New creates a retrieval service.
func New(states StateProvider, embed Embedder, opts Options, log *zap.Logger) *Service {
	opts.ApplyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		states:  states,
		embed:   embed,
		extract: newExtractor(),
		opts:    opts,
		log:     log,
	}
}

// Search returns up to q.TopK documents ranked by descending score, plus
// the number of neighbors found before threshold filtering.
func (s *Service) Search(ctx context.Context, q domain.Query) ([]domain.SearchResult, int, error) {
	start := time.Now()
	results, total, err := s.search(ctx, q)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, 0, err
	}
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	return results, total, nil
}

func (s *Service) search(ctx context.Context, q domain.Query) ([]domain.SearchResult, int, error) {
	if err := validateQuery(&q); err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	st, err := s.states.Snapshot()
	if err != nil {
		return nil, 0, err
	}

	emb, err := s.embed.Embed(ctx, q.Text)
	if err != nil {
		return nil, 0, asTimeout(fmt.Errorf("vectorize query: %w", err))
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	if err := ctx.Err(); err != nil {
		return nil, 0, asTimeout(err)
	}

	candidates, err := st.Index.Search(emb.Embedding, q.TopK)
	if err != nil {
		return nil, 0, fmt.Errorf("index search: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		score := 1 - c.Distance
		if score < q.Threshold {
			continue
		}
		doc, err := st.Docs.ByInternalID(c.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("join document %d: %w", c.ID, err)
		}
		results = append(results, domain.SearchResult{
			Document: doc,
			Score:    score,
			Distance: c.Distance,
		})
	}
	return results, len(candidates), nil
}

// Answer retrieves context for the question and composes an extractive
// answer from it. When no hit clears the relevance floor the fixed
// insufficient-context answer is returned with no sources.
func (s *Service) Answer(ctx context.Context, question string, topK int) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidQuery)
	}

	results, _, err := s.Search(ctx, domain.Query{
		Text:      question,
		TopK:      clampQATopK(topK),
		Threshold: 0,
	})
	if err != nil {
		return domain.Answer{}, err
	}

	if len(results) == 0 || results[0].Score < s.opts.QAMinScore {
		return domain.Answer{
			Question:   question,
			AnswerText: InsufficientContextAnswer,
		}, nil
	}

	contextText := s.buildContext(results)
	return domain.Answer{
		Question:    question,
		AnswerText:  s.extract.Compose(question, contextText, maxAnswerSentences),
		Sources:     results,
		ContextUsed: contextText,
	}, nil
}

// Stats reports the serving counters plus the configured embedding model.
func (s *Service) Stats() domain.Stats {
	stats := s.states.Stats()
	stats.EmbeddingModel = s.opts.Model
	return stats
}

// buildContext concatenates retrieved texts in rank order up to the
// configured character bound.
func (s *Service) buildContext(results []domain.SearchResult) string {
	var b strings.Builder
	for i := range results {
		text := results[i].Document.Text()
		if b.Len() > 0 {
			if b.Len()+2 >= s.opts.QAMaxContextChars {
				break
			}
			b.WriteString("\n\n")
		}
		remaining := s.opts.QAMaxContextChars - b.Len()
		if len(text) > remaining {
			cut := text[:remaining]
			for len(cut) > 0 && !utf8.ValidString(cut) {
				cut = cut[:len(cut)-1]
			}
			b.WriteString(cut)
			break
		}
		b.WriteString(text)
	}
	return b.String()
}

func validateQuery(q *domain.Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query text is empty", domain.ErrInvalidQuery)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidQuery)
	}
	if q.TopK == 0 {
		q.TopK = domain.DefaultTopK
	}
	if q.TopK > domain.MaxTopK {
		q.TopK = domain.MaxTopK
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0, 1]", domain.ErrInvalidQuery)
	}
	return nil
}

func clampQATopK(topK int) int {
	switch {
	case topK <= 0:
		return qaMaxTopK
	case topK < qaMinTopK:
		return qaMinTopK
	case topK > qaMaxTopK:
		return qaMaxTopK
	default:
		return topK
	}
}

// asTimeout converts deadline exhaustion into the domain timeout error so
// callers can tell it apart from an empty result set or a hard failure.
func asTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}
