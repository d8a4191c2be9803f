package memory

import (
	"context"
	"sync"
	"time"
)

type windowKey struct {
	caller string
	bucket int64
}

// RateLimitStore counts requests per (caller, window bucket) in memory.
// Stale buckets are dropped lazily on each Incr, keyed off the highest
// bucket seen, so the map cannot grow without bound.
type RateLimitStore struct {
	mu        sync.Mutex
	counts    map[windowKey]int64
	maxBucket int64
}

// NewRateLimitStore returns an empty counter store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{counts: make(map[windowKey]int64)}
}

// Incr atomically increments the caller's counter for the given window
// bucket and returns the new count. The ttl is unused in memory; buckets
// older than the current one are evicted instead.
func (s *RateLimitStore) Incr(ctx context.Context, caller string, bucket int64, _ time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if bucket > s.maxBucket {
		for key := range s.counts {
			if key.bucket < bucket {
				delete(s.counts, key)
			}
		}
		s.maxBucket = bucket
	}
	key := windowKey{caller: caller, bucket: bucket}
	s.counts[key]++
	return s.counts[key], nil
}
