package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/semdex-io/semdex/internal/db"
)

// Get retrieves a value, translating a Redis nil into db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	data, err := resp.AsBytes()
	switch {
	case err == nil:
		return data, nil
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	default:
		return nil, db.Wrap(db.OpGet, err)
	}
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.exec(ctx, db.OpSet, s.client.B().Set().Key(key).Value(string(value)).Build())
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.exec(ctx, db.OpSet, s.client.B().Set().Key(key).Value(string(value)).Ex(ttl).Build())
}

// IncrBy atomically adds val to the counter at key.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	return s.exec(ctx, db.OpIncrBy, s.client.B().Incrby().Key(key).Increment(val).Build())
}

// Expire sets a TTL. With nx the TTL is applied only when the key has
// none yet, so an existing window keeps its original deadline.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	secs := int64(ttl.Seconds())
	b := s.client.B().Expire().Key(key).Seconds(secs)
	if nx {
		return s.exec(ctx, db.OpExpire, b.Nx().Build())
	}
	return s.exec(ctx, db.OpExpire, b.Build())
}
