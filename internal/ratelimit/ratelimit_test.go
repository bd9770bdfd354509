package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, defaultLimit int, window time.Duration) Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiterWithClient(client, defaultLimit, window)
}

func TestRedisLimiterEnforcesLimit(t *testing.T) {
	limiter := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "key:abc", 0)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be within the limit", i+1)
	}

	allowed, err := limiter.Allow(ctx, "key:abc", 0)
	require.NoError(t, err)
	assert.False(t, allowed, "request over the limit must be rejected")
}

func TestRedisLimiterPerKeyOverride(t *testing.T) {
	limiter := newTestLimiter(t, 100, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "key:low", 2)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "key:low", 2)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Other keys are unaffected.
	allowed, err = limiter.Allow(ctx, "key:other", 2)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiterWindowSlides(t *testing.T) {
	limiter := newTestLimiter(t, 2, 100*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "key:slide", 0)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "key:slide", 0)
	require.NoError(t, err)
	require.False(t, allowed)

	// Once the earlier requests fall out of the window, capacity returns.
	time.Sleep(150 * time.Millisecond)

	allowed, err = limiter.Allow(ctx, "key:slide", 0)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiterCountsEachRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter := NewRedisLimiterWithClient(client, 100, time.Minute)
	ctx := context.Background()

	// Back-to-back requests can land in the same nanosecond; each must
	// still occupy its own ZSET member or the window undercounts.
	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "key:burst", 0)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	n, err := client.ZCard(ctx, "ratelimit:key:burst").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestNewRedisLimiterInvalidURL(t *testing.T) {
	_, err := NewRedisLimiter("not-a-url", 10, time.Minute)
	assert.Error(t, err)
}

func TestNoOpLimiter(t *testing.T) {
	limiter := NoOpLimiter{}
	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(context.Background(), "any", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.NoError(t, limiter.Close())
}
