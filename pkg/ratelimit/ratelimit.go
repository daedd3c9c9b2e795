// Package ratelimit throttles callers by key. MemoryLimiter suits a single instance;
// RedisLimiter shares one budget across every instance behind a load balancer.
package ratelimit

import (
	"context"
	"time"
)

// Limiter consumes one request from key's budget. When the request is refused,
// retryAfter says how long until the budget allows another.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// window is the period in which burst requests average out to rps.
func window(rps float64, burst int) time.Duration {
	if rps <= 0 || burst <= 0 {
		return time.Second
	}
	w := time.Duration(float64(burst) / rps * float64(time.Second))
	if w < time.Millisecond {
		return time.Millisecond
	}
	return w
}
