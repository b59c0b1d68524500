package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptKeyPrefix = "login_attempts:"

// Redis is the shared limiter for multi-instance deployments. INCR is
// atomic on the server, so concurrent bursts from one address never
// undercount.
type Redis struct {
	client      *redis.Client
	windowSize  time.Duration
	maxAttempts int
}

func NewRedis(client *redis.Client, windowSize time.Duration, maxAttempts int) *Redis {
	return &Redis{
		client:      client,
		windowSize:  windowSize,
		maxAttempts: maxAttempts,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := attemptKeyPrefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX: the window starts at the first attempt and is not extended by
	// later ones.
	pipe.ExpireNX(ctx, redisKey, r.windowSize)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter update: %w", err)
	}

	return incr.Val() <= int64(r.maxAttempts), nil
}
