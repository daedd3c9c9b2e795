package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientProvider hands out the current go-redis client. *pkg/redis.Client satisfies it.
type ClientProvider interface {
	GetClient() *redis.Client
}

// fixedWindow counts requests in the current window and refuses past the limit.
// Returns {allowed, milliseconds until the window resets}.
var fixedWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local count = tonumber(redis.call('HGET', key, 'count')) or 0
local start = tonumber(redis.call('HGET', key, 'start')) or now

if now - start >= window then
	count = 0
	start = now
end

local allowed = count < limit
if allowed then
	count = count + 1
end

redis.call('HSET', key, 'count', count, 'start', start)
redis.call('PEXPIRE', key, window)

local reset = 0
if not allowed then
	reset = (start + window) - now
end
return {allowed and 1 or 0, reset}
`)

// RedisLimiter allows burst requests per window, where the window is sized so the
// long-run rate is rps.
type RedisLimiter struct {
	client    ClientProvider
	keyPrefix string
	limit     int
	window    time.Duration
	now       func() time.Time
}

func NewRedisLimiter(client ClientProvider, keyPrefix string, rps float64, burst int) *RedisLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     burst,
		window:    window(rps, burst),
		now:       time.Now,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	result, err := fixedWindow.Run(ctx, r.client.GetClient(), []string{r.keyPrefix + key},
		r.limit,
		r.window.Milliseconds(),
		r.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	if result[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(result[1]) * time.Millisecond, nil
}
