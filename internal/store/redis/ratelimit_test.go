package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	store := NewWithClient(client)
	t.Cleanup(func() { _ = store.Close() })
	return store, mini
}

func TestIncrCountsPerCallerWindow(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for i := int64(1); i <= 3; i++ {
		n, err := store.Incr(ctx, "svc-a", 100, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := store.Incr(ctx, "svc-b", 100, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "callers counted independently")

	n, err = store.Incr(ctx, "svc-a", 101, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "new window starts fresh")
}

func TestIncrKeysExpire(t *testing.T) {
	ctx := context.Background()
	store, mini := newTestStore(t)

	_, err := store.Incr(ctx, "svc-a", 100, time.Minute)
	require.NoError(t, err)

	mini.FastForward(2 * time.Minute)

	n, err := store.Incr(ctx, "svc-a", 100, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired bucket restarts at one")
}
