// Package redis provides the Redis-backed rate-limit counter used when
// multiple gateway replicas must share one view of per-caller request
// counts.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config controls the Redis connection.
type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int
}

// RateLimitStore counts requests per (caller, window bucket) in Redis.
type RateLimitStore struct {
	client *redis.Client
}

// New creates a Redis-backed RateLimitStore and verifies the connection.
func New(cfg Config) (*RateLimitStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RateLimitStore{client: client}, nil
}

// NewWithClient creates a RateLimitStore with an existing client (for testing).
func NewWithClient(client *redis.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

// Close closes the Redis connection.
func (s *RateLimitStore) Close() error {
	return s.client.Close()
}

// Incr atomically increments the caller's counter for the given window
// bucket. The key expires a little after the window so stale buckets
// clean themselves up.
func (s *RateLimitStore) Incr(ctx context.Context, caller string, bucket int64, ttl time.Duration) (int64, error) {
	key := windowKey(caller, bucket)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr rate limit %s: %w", key, err)
	}
	return incr.Val(), nil
}

func windowKey(caller string, bucket int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", caller, bucket)
}
