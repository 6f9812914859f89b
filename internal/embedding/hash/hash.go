// Package hash implements a deterministic in-process embedder using the
// hashing trick: each token (and token bigram) lands in a bucket chosen by
// FNV-1a, with an independent hash bit picking the sign, and the result is
// L2-normalized. It needs no model server and no corpus pass, which makes
// it the provider of choice for tests, demos and air-gapped deployments.
// The vectors are lexical, not semantic: quality tops out at token overlap.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/vecmath"
)

// ModelName identifies the hashing scheme. Bump it when tokenization or
// feature weights change: vectors from different versions must not share an
// index.
const ModelName = "feature-hash-v1"

const bigramWeight = 0.5

// Embedder maps text to a fixed-dimension vector. Stateless and safe for
// concurrent use.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates a hash embedder producing vectors of the given dimension.
func New(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: hash embedder dimension must be positive, got %d", domain.ErrConfiguration, dimension)
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}, nil
}

// Dimension returns the dimensionality of produced vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Model returns the model identifier reported in stats.
func (e *Embedder) Model() string { return ModelName }

// Embed vectorizes one text. Texts with no usable tokens fail with
// domain.ErrEncoding.
func (e *Embedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty text", domain.ErrEncoding)
	}
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: text %q has no embeddable tokens", domain.ErrEncoding, truncate(text, 60))
	}

	vec := make([]float32, e.dimension)
	for i, tok := range tokens {
		e.accumulate(vec, tok, 1.0)
		if i+1 < len(tokens) {
			e.accumulate(vec, tokens[i]+"_"+tokens[i+1], bigramWeight)
		}
	}
	vecmath.NormalizeL2InPlace(vec)

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(tokens),
		TotalTokens:  len(tokens),
	}, nil
}

// BatchEmbed vectorizes texts one by one; there is no amortization to gain
// in-process.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, e, texts)
}

// HealthCheck always succeeds: there is no model server to lose.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

// accumulate adds a signed weight to the feature's bucket. Bucket and sign
// come from disjoint halves of one 64-bit hash, so they are independent.
func (e *Embedder) accumulate(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := uint32(sum&0xFFFFFFFF) % uint32(e.dimension)
	if sum&(1<<32) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
