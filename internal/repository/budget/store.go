// Package budget persists token budget counters in the key-value store,
// so spend survives restarts and is shared across replicas.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/semdex-io/semdex/internal/db"
)

// kv is the slice of db.Store the counters need.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps one integer counter per budget window key.
type Store struct {
	kv       kv
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. TTLs should outlive their window slightly
// (48h for daily, ~62 days for monthly) so a counter stays readable
// until the next window has clearly begun.
func New(s kv, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{kv: s, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// Get reads a counter. A key that never existed (or already expired)
// reads as zero spend.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget read %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget read %s: %w", key, err)
	}
	return val, nil
}

// IncrBy adds val to the counter and arms its TTL. The NX flag keeps a
// repeated increment from pushing the expiry forward.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.kv.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	if err := s.kv.Expire(ctx, key, s.windowTTL(key), true); err != nil {
		return fmt.Errorf("budget expire %s: %w", key, err)
	}
	return nil
}

// windowTTL picks the TTL from the window segment of the key
// ("...:daily:2026-08-30" vs "...:monthly:2026-08").
func (s *Store) windowTTL(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
