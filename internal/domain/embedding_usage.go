package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates token spend over one request. The transport
// layer plants the pointer before calling into a usecase; whoever embeds
// adds to it; the transport reads it back for response headers.
type EmbeddingUsage struct {
	TotalTokens int
	// Used distinguishes "embedded for free" (cache hit) from "never
	// embedded at all".
	Used bool
}

// NewContextWithUsage attaches a fresh collector to ctx and returns both.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector, or nil when none was attached.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens books n tokens. Safe on a nil receiver so call sites don't
// have to branch.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
