package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticClient struct {
	client *redis.Client
}

func (s staticClient) GetClient() *redis.Client { return s.client }

func setupRedisLimiter(t *testing.T, rps float64, burst int) (*RedisLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLimiter(staticClient{client: client}, "test:ratelimit:", rps, burst), mr
}

func TestWindow(t *testing.T) {
	assert.Equal(t, 2*time.Second, window(5, 10))
	assert.Equal(t, time.Second, window(0, 10))
	assert.Equal(t, time.Second, window(10, 0))
	assert.Equal(t, time.Millisecond, window(1e9, 1))
}

func TestRedisLimiter_AllowsBurstThenRefuses(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, 1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, retryAfter, err := limiter.Allow(ctx, "provider:a")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
		assert.Zero(t, retryAfter)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "provider:a")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, 3*time.Second)

	assert.True(t, mr.Exists("test:ratelimit:provider:a"))
}

func TestRedisLimiter_WindowResets(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, 1, 1)
	ctx := context.Background()

	now := time.UnixMilli(1700000000000)
	limiter.now = func() time.Time { return now }

	allowed, _, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, retryAfter, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Second, retryAfter)

	now = now.Add(time.Second)
	allowed, _, err = limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, 1, 1)
	ctx := context.Background()

	for _, key := range []string{"provider:a", "provider:b"} {
		allowed, _, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed, key)
	}

	allowed, _, err := limiter.Allow(ctx, "provider:a")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, 1, 1)
	mr.Close()

	allowed, _, err := limiter.Allow(context.Background(), "provider:a")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiter_AllowsBurstThenRefuses(t *testing.T) {
	limiter := NewMemoryLimiter(0.001, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "provider:a")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "provider:a")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	allowed, _, err = limiter.Allow(ctx, "provider:b")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, limiter.Size())
}

func TestMemoryLimiter_RefusalDoesNotConsume(t *testing.T) {
	limiter := NewMemoryLimiter(0.001, 1)
	ctx := context.Background()

	allowed, _, _ := limiter.Allow(ctx, "k")
	require.True(t, allowed)

	for i := 0; i < 5; i++ {
		allowed, _, _ = limiter.Allow(ctx, "k")
		assert.False(t, allowed)
	}

	// refused requests cancel their reservation, so the bucket is not driven negative
	assert.InDelta(t, 0, limiter.getLimiter("k").Tokens(), 0.01)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	limiter := NewMemoryLimiter(1000, 1)
	ctx := context.Background()

	_, _, _ = limiter.Allow(ctx, "a")
	_, _, _ = limiter.Allow(ctx, "b")
	require.Equal(t, 2, limiter.Size())

	limiter.sweep(time.Now().Add(time.Minute))
	assert.Equal(t, 0, limiter.Size())
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	limiter := NewMemoryLimiter(0.001, 50)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, _ := limiter.Allow(ctx, "shared")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestMemoryLimiter_RunStops(t *testing.T) {
	limiter := NewMemoryLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		limiter.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
