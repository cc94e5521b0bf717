// Package ratelimit implements the soft per-caller sliding window on
// initiation. Redis sorted sets hold the window; when Redis is unreachable
// the limiter fails open; throttling is a courtesy control, not a
// correctness mechanism.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Limiter interface {
	// Allow reports whether the caller may proceed and how many requests
	// remain in the window.
	Allow(ctx context.Context, key string) (bool, int)
}

type RedisLimiter struct {
	rdb      *redis.Client
	requests int
	window   time.Duration
	prefix   string
}

func NewRedisLimiter(rdb *redis.Client, requestsPerWindow int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, requests: requestsPerWindow, window: window, prefix: "rl:initiate"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int) {
	now := time.Now()
	windowKey := fmt.Sprintf("%s:%s", l.prefix, key)
	windowStart := now.Add(-l.window).UnixNano()

	pipe := l.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, windowKey, "0", strconv.FormatInt(windowStart, 10))
	count := pipe.ZCard(ctx, windowKey)
	pipe.ZAdd(ctx, windowKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, windowKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, failing open")
		return true, 0
	}

	remaining := l.requests - int(count.Val())
	return remaining > 0, remaining
}

// Unlimited is used in tests and when no Redis address is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, int) { return true, 0 }
