package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/camarena/rifamaster/internal/adapters/redis"
)

// RateLimiter is a fixed-window counter over redis. When redis is down it
// fails closed for the window rather than letting bursts through.
type RateLimiter struct {
	store *redisadapter.Store
}

func NewRateLimiter(store *redisadapter.Store) *RateLimiter {
	return &RateLimiter{store: store}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.store.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false
	}

	return incr.Val() <= int64(rate)
}
