package ratelimit

import (
	"context"
	"time"

	redisadapter "github.com/CharlesNJoroge8822/space-bookings/internal/adapters/redis"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
)

type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow is a fixed-window counter keyed per caller. Redis errors fail open:
// a degraded limiter must not take reservations down with it.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}

	if incr.Val() > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}
