// Package ratelimit throttles login attempts per client.
package ratelimit

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/turtacn/ssoguard/internal/domain/service"
)

var _ service.RateLimiter = (*LocalLimiter)(nil)

// idleExpiry drops per-key limiters that have not been used for a while.
const idleExpiry = 10 * time.Minute

// LocalLimiter keeps one token bucket per key in process memory.
type LocalLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewLocalLimiter allows perMinute events per key with the given burst. A burst below one
// is raised to one.
func NewLocalLimiter(perMinute, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LocalLimiter{
		limiters: cache.New(idleExpiry, idleExpiry),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow implements service.RateLimiter.
func (l *LocalLimiter) Allow(_ context.Context, key string) bool {
	return l.limiterFor(key).Allow()
}

func (l *LocalLimiter) limiterFor(key string) *rate.Limiter {
	if v, ok := l.limiters.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.limiters.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(key, lim, cache.DefaultExpiration); err != nil {
		// lost the race to another goroutine; use its limiter
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}
