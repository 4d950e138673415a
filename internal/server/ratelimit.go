package server

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopping-assistant/internal/common/config"
)

// RedisRateLimiter enforces per-client minute and hour windows with Redis
// counters. Fixed windows keep it to one round trip per request.
type RedisRateLimiter struct {
	client    *redis.Client
	perMinute int
	perHour   int
}

func NewRedisRateLimiter(client *redis.Client, cfg config.RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		perMinute: cfg.RequestsPerMinute,
		perHour:   cfg.RequestsPerHour,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, clientID string) (bool, int, error) {
	now := time.Now().UTC()
	minuteKey := fmt.Sprintf("ratelimit:%s:m:%d", clientID, now.Unix()/60)
	hourKey := fmt.Sprintf("ratelimit:%s:h:%d", clientID, now.Unix()/3600)

	pipe := l.client.TxPipeline()
	minuteCount := pipe.Incr(ctx, minuteKey)
	pipe.Expire(ctx, minuteKey, 2*time.Minute)
	hourCount := pipe.Incr(ctx, hourKey)
	pipe.Expire(ctx, hourKey, 2*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}

	if l.perMinute > 0 && minuteCount.Val() > int64(l.perMinute) {
		retryAfter := 60 - int(now.Unix()%60)
		return false, retryAfter, nil
	}
	if l.perHour > 0 && hourCount.Val() > int64(l.perHour) {
		retryAfter := 3600 - int(now.Unix()%3600)
		return false, retryAfter, nil
	}
	return true, 0, nil
}
