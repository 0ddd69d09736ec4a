package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/logger"
)

var _ service.RateLimiter = (*RedisRateLimiter)(nil)

const keyPrefix = "ssoguard:ratelimit:"

// RedisRateLimiter is a fixed one-minute window shared by every instance. When Redis
// cannot be reached it falls back to a per-process limiter.
type RedisRateLimiter struct {
	client   redis.UniversalClient
	limit    int64
	clock    clock.Clock
	fallback service.RateLimiter
	logger   logger.Logger
}

// NewRedisRateLimiter allows perMinute+burst events per key and window.
func NewRedisRateLimiter(client redis.UniversalClient, perMinute, burst int, clk clock.Clock, log logger.Logger) *RedisRateLimiter {
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &RedisRateLimiter{
		client:   client,
		limit:    int64(perMinute + burst),
		clock:    clk,
		fallback: NewLocalLimiter(perMinute, burst),
		logger:   log.WithComponent("rate_limiter"),
	}
}

// Allow implements service.RateLimiter.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	window := l.clock.Now().Unix() / 60
	redisKey := keyPrefix + key + ":" + strconv.FormatInt(window, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn(ctx, "redis rate limiter unavailable, using local fallback", logger.Error(err))
		return l.fallback.Allow(ctx, key)
	}
	return incr.Val() <= l.limit
}
