package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/metrics"
)

// DefaultMaxAPIBatchSize bounds how many texts go into one provider call.
// Larger ingest batches are split transparently.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker is the narrow budget interface this decorator needs.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEmbedder decorates an Embedder with budget enforcement and
// request logging. Provider-level metrics (requests, duration, tokens)
// belong to the transport layer; this one owns only the budget gauge.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   BudgetChecker
	log      *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil, which disables
// enforcement but keeps the logging.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, log *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		log:      log,
	}
}

// Embed gates the call on the budget, delegates, and books the spend.
func (ie *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ie.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := ie.inner.Embed(ctx, text)
	if err != nil {
		ie.log.Error("embedding request failed",
			zap.String("provider", ie.provider),
			zap.String("model", ie.model),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	ie.bookTokens(result.TotalTokens)
	ie.log.Debug("embedding request completed",
		zap.String("provider", ie.provider),
		zap.String("model", ie.model),
		zap.Duration("took", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed splits the input into provider-sized chunks, re-checking the
// budget before each chunk so a long batch cannot blow far past the cap.
func (ie *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	var out domain.BatchEmbeddingResult

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		if err := ie.checkBudget(ctx, len(texts)); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		end := min(offset+DefaultMaxAPIBatchSize, len(texts))
		chunk, err := ie.embedChunk(ctx, texts[offset:end])
		if err != nil {
			ie.log.Error("batch embedding failed",
				zap.String("provider", ie.provider),
				zap.String("model", ie.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", end-offset),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, err
		}

		out.Embeddings = append(out.Embeddings, chunk.Embeddings...)
		out.PromptTokens += chunk.PromptTokens
		out.TotalTokens += chunk.TotalTokens
	}

	ie.bookTokens(out.TotalTokens)
	ie.log.Debug("batch embedding completed",
		zap.String("provider", ie.provider),
		zap.String("model", ie.model),
		zap.Duration("took", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

func (ie *InstrumentedEmbedder) embedChunk(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := ie.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, ie.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch fallback: %w", err)
	}
	return res, nil
}

func (ie *InstrumentedEmbedder) checkBudget(ctx context.Context, batchSize int) error {
	if ie.budget == nil {
		return nil
	}
	if err := ie.budget.Check(ctx); err != nil {
		ie.log.Error("budget exceeded",
			zap.String("provider", ie.provider),
			zap.String("model", ie.model),
			zap.Int("batch_size", batchSize),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

// bookTokens records the spend and refreshes the remaining-budget gauge.
func (ie *InstrumentedEmbedder) bookTokens(totalTokens int) {
	if ie.budget == nil || totalTokens <= 0 {
		return
	}
	ie.budget.Record(int64(totalTokens))
	gauge := metrics.EmbeddingBudgetTokensRemaining
	gauge.WithLabelValues(ie.provider, "daily").Set(float64(ie.budget.RemainingDaily()))
	gauge.WithLabelValues(ie.provider, "monthly").Set(float64(ie.budget.RemainingMonthly()))
}
