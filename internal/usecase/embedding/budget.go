package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain"
)

// BudgetAction is what happens when a token ceiling is reached.
type BudgetAction string

const (
	// BudgetActionWarn logs the overrun but lets the request through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists window counters across restarts. IncrBy must be
// safe to call repeatedly.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// window is one rolling budget period. start identifies the period the
// counter belongs to; entering a later period zeroes it.
type window struct {
	name   string // key segment and log field
	layout string // time layout that names the period in keys
	trunc  func(time.Time) time.Time
	used   int64
	limit  int64
	start  time.Time
}

func (w *window) roll(now time.Time) {
	if p := w.trunc(now); p.After(w.start) {
		w.used = 0
		w.start = p
	}
}

func (w *window) exceeded() bool {
	return w.limit > 0 && w.used >= w.limit
}

// remaining reports tokens left, -1 when the window is unlimited.
func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	if left := w.limit - w.used; left > 0 {
		return left
	}
	return 0
}

func (w *window) key(provider string) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s",
		domain.KeyPrefix, provider, w.name, w.start.Format(w.layout))
}

// BudgetTracker enforces daily and monthly token ceilings for one
// embedding provider. Check is the hot path and never touches the store;
// Record updates memory first and writes behind with its own deadline.
type BudgetTracker struct {
	mu       sync.Mutex
	provider string
	action   BudgetAction
	daily    window
	monthly  window
	store    BudgetStore
	log      *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited for
// that window.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, log *zap.Logger,
) *BudgetTracker {
	now := time.Now().UTC()
	return &BudgetTracker{
		provider: provider,
		action:   action,
		daily: window{
			name:   "daily",
			layout: "2006-01-02",
			trunc:  truncateToDay,
			limit:  dailyLimit,
			start:  truncateToDay(now),
		},
		monthly: window{
			name:   "monthly",
			layout: "2006-01",
			trunc:  truncateToMonth,
			limit:  monthlyLimit,
			start:  truncateToMonth(now),
		},
		log: log,
	}
}

// WithStore attaches persistence and restores the current counters. A
// counter that cannot be read starts from zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	b.store = store
	now := time.Now().UTC()
	for _, w := range []*window{&b.daily, &b.monthly} {
		w.roll(now)
		val, err := store.Get(ctx, w.key(b.provider))
		if err != nil {
			b.log.Warn("budget counter unavailable, starting from zero",
				zap.String("window", w.name), zap.Error(err))
			continue
		}
		w.used = val
	}
	daily, monthly := b.daily.used, b.monthly.used
	b.mu.Unlock()

	b.log.Info("budget counters restored",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", daily),
		zap.Int64("monthly_used", monthly),
	)
	return b
}

// Check reports whether another request fits the budget. In-memory only.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	b.daily.roll(now)
	b.monthly.roll(now)

	if !b.daily.exceeded() && !b.monthly.exceeded() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.log.Warn("token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("daily_limit", b.daily.limit),
		zap.Int64("monthly_used", b.monthly.used),
		zap.Int64("monthly_limit", b.monthly.limit),
	)
	return nil
}

// Record registers consumed tokens. The store write happens after the
// lock is released and never blocks the caller on a slow store.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	now := time.Now().UTC()
	b.daily.roll(now)
	b.monthly.roll(now)
	b.daily.used += tokens
	b.monthly.used += tokens
	keys := []string{b.daily.key(b.provider), b.monthly.key(b.provider)}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.log.Warn("budget counter not persisted",
				zap.String("key", key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.daily.roll(time.Now().UTC())
	return b.daily.remaining()
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.monthly.roll(time.Now().UTC())
	return b.monthly.remaining()
}

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.daily.roll(time.Now().UTC())
	return b.daily.used
}

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.monthly.roll(time.Now().UTC())
	return b.monthly.used
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
