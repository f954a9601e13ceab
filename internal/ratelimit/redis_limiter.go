package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// milliScore converts a timestamp to the sorted-set score unit. Millisecond
// resolution keeps same-tick taps from colliding while staying well inside
// float64 precision.
func milliScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// RedisLimiter backs the sliding window with a sorted set per key, shared by
// every bot replica so per-user limits hold across instances. Each request
// becomes a member scored by its arrival time; the window is the member count
// after pruning.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log}
}

// Check records the request and evaluates the window. A full window is an
// answer, not an error: the caller gets Allowed=false and a nil error, and
// the adaptive wrapper decides how to surface it.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := time.Now()
	floor := now.Add(-window)

	if limit <= 0 {
		return &Result{Allowed: false, ResetAt: now.Add(window)}, nil
	}

	redisKey := keyPrefix + key

	// Prune, record and count in one transaction so concurrent taps from the
	// same user cannot interleave between the steps.
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatFloat(milliScore(floor), 'f', -1, 64))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: milliScore(now), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count := int(countCmd.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   floor.Add(window),
	}, nil
}
