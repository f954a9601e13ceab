package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// staleAfter is how long a window may sit untouched before its key is
// reclaimed. Longer than any configured window, so live traffic never loses
// entries to the sweep.
const staleAfter = 5 * time.Minute

// Cleaner reclaims limiter state for users who went quiet: emptied sorted
// sets in Redis and idle buckets in the in-process fallback.
type Cleaner struct {
	client   *redis.Client
	memory   *MemoryLimiter
	log      *slog.Logger
	interval time.Duration
}

// NewCleaner builds a Cleaner sweeping both backends on the given interval.
func NewCleaner(client *redis.Client, memory *MemoryLimiter, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		memory:   memory,
		log:      log,
		interval: interval,
	}
}

// Run sweeps until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			if c.memory != nil {
				c.memory.Cleanup(staleAfter)
			}
			if c.client != nil {
				c.sweepRedis(ctx)
			}
		}
	}
}

// sweepRedis walks limiter keys, prunes entries older than staleAfter and
// deletes keys that emptied out. Scores are the limiter's millisecond
// timestamps, so the cutoff must use the same unit.
func (c *Cleaner) sweepRedis(ctx context.Context) {
	cutoff := "(" + strconv.FormatInt(time.Now().Add(-staleAfter).UnixMilli(), 10)

	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			c.log.Error("rate limit scan failed", slog.Any("error", err))
			return
		}

		for _, key := range keys {
			if c.sweepKey(ctx, key, cutoff) {
				removed++
			}
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	if removed > 0 {
		c.log.Info("rate limit keys reclaimed", slog.Int("keys_removed", removed))
	}
}

// sweepKey prunes one sorted set and reports whether the key was deleted.
func (c *Cleaner) sweepKey(ctx context.Context, key, cutoff string) bool {
	pipe := c.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	cardCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("rate limit prune failed", slog.String("key", key), slog.Any("error", err))
		return false
	}

	if cardCmd.Val() > 0 {
		return false
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
		return false
	}

	return true
}
