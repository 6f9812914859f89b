// Package db defines the key-value contract shared by the Redis and
// in-memory backends. The embedding cache and the token budget counters
// are its only consumers, so the surface stays deliberately small.
package db

import (
	"context"
	"time"
)

// KV is the operation set both backends implement.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store adds lifecycle management on top of KV.
type Store interface {
	KV
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}
