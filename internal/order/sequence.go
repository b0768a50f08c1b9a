package order

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Sequence allocates increasing order ids.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// RedisSequence allocates ids with INCR on a single key.
type RedisSequence struct {
	Client *redis.Client
	Key    string
}

// Next implements Sequence.
func (s RedisSequence) Next(ctx context.Context) (int64, error) {
	if s.Client == nil {
		return 0, errors.New("order: redis client not configured")
	}
	key := s.Key
	if key == "" {
		key = "order:seq"
	}
	return s.Client.Incr(ctx, key).Result()
}

// MemorySequence allocates ids from an in-process counter.
type MemorySequence struct {
	last atomic.Int64
}

// NewMemorySequence starts counting after start.
func NewMemorySequence(start int64) *MemorySequence {
	s := &MemorySequence{}
	s.last.Store(start)
	return s
}

// Next implements Sequence.
func (s *MemorySequence) Next(context.Context) (int64, error) {
	return s.last.Add(1), nil
}
