package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunomcebola/argos/internal/ratelimit"
)

func TestLimiter_AllowsWithinRateThenBlocks(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 2, Window: time.Second}

	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))
	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))
	assert.False(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))
}

func TestLimiter_ScopesAreIndependent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 1, Window: time.Second}

	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "node-1", cfg))
	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeRecording, "node-1", cfg))
	assert.False(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "node-1", cfg))
}

func TestLimiter_RedisDown_FailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	limiter := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 1, Window: time.Second}

	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))
	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))
}

func TestLimiter_WindowRollsOver(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 1, Window: 50 * time.Millisecond}

	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))
	assert.False(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))

	mr.FastForward(100 * time.Millisecond)

	assert.True(t, limiter.Allow(context.Background(), ratelimit.ScopeProxyIP, "1.2.3.4", cfg))
}
