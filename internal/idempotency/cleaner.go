package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxRecordAge is the oldest any record should be given the TTLs handed to
// Execute. Keys older than this, or with no TTL at all, lost their expiry
// (typically after a Redis restore) and would otherwise pin memory forever.
const maxRecordAge = 25 * time.Hour

// Cleaner sweeps idempotency keys whose expiry went missing.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
}

// NewCleaner builds a Cleaner sweeping on the given interval.
func NewCleaner(client *redis.Client, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		log:      log,
		interval: interval,
	}
}

// Run sweeps until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, "idempotency:*", 100).Result()
		if err != nil {
			c.log.Error("idempotency sweep scan failed", slog.Any("error", err))
			return
		}

		for _, key := range keys {
			if c.reclaimIfStale(ctx, key) {
				removed++
			}
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	if removed > 0 {
		c.log.Info("stale idempotency keys removed", slog.Int("count", removed))
	}
}

// reclaimIfStale deletes the key when its TTL is absent or implausibly long,
// and reports whether it did.
func (c *Cleaner) reclaimIfStale(ctx context.Context, key string) bool {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		c.log.Warn("failed to read key ttl", slog.String("key", key), slog.Any("error", err))
		return false
	}

	if ttl >= 0 && ttl <= maxRecordAge {
		return false
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("failed to delete stale idempotency key", slog.String("key", key), slog.Any("error", err))
		return false
	}

	return true
}
