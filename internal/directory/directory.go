// Package directory resolves the selectable catalog of participants: open
// events and competitors, grouped by category. Lookups hit PostgreSQL behind
// a Redis read-through cache and a circuit breaker, because the builder must
// keep working (via manual entry) when the directory is degraded.
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
)

const cacheTTL = 2 * time.Minute

// Directory serves participant lookups for the builder's selection step.
type Directory struct {
	db      *sql.DB
	cache   *redis.Client
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// New constructs a Directory. The Redis client is optional; without it every
// lookup goes straight to the database.
func New(db *sql.DB, cache *redis.Client, log *slog.Logger) *Directory {
	return &Directory{
		db:      db,
		cache:   cache,
		breaker: apperrors.NewCircuitBreaker(),
		log:     log,
	}
}

// Lookup returns up to limit open participants for the category, best ranked
// first. Concluded entries are excluded at the source so callers never see
// them. scopeID is reserved for per-chat curation and currently only scopes
// the cache key.
func (d *Directory) Lookup(ctx context.Context, category string, scopeID int64, limit int) ([]domain.Item, error) {
	if limit <= 0 {
		return nil, nil
	}

	key := cacheKey(category, scopeID, limit)

	if items, ok := d.fromCache(ctx, key); ok {
		return items, nil
	}

	var items []domain.Item
	err := d.breaker.Call(func() error {
		var lookupErr error
		items, lookupErr = d.query(ctx, category, limit)
		return lookupErr
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCircuitOpen) {
			return nil, apperrors.NewTransientError("participant directory", err)
		}
		return nil, err
	}

	d.toCache(ctx, key, items)

	return items, nil
}

// Remember records a manually-entered participant so future lookups can offer
// it. Failures are the caller's to ignore; manual entry must never block on
// directory writes.
func (d *Directory) Remember(ctx context.Context, item domain.Item) error {
	const query = `
		INSERT INTO participants (id, label, counterpart, category, concluded, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
		ON CONFLICT (id) DO UPDATE
		SET label = EXCLUDED.label, counterpart = EXCLUDED.counterpart, updated_at = NOW()
	`

	if _, err := d.db.ExecContext(ctx, query, item.ID, item.Label, item.Counterpart, item.Category); err != nil {
		return apperrors.NewPersistenceError("remember participant", err)
	}

	return nil
}

// ConcludeStale marks participants not refreshed within maxAge as concluded,
// removing them from future lookups. Run periodically by the jobs worker.
func (d *Directory) ConcludeStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := d.db.ExecContext(
		ctx,
		`UPDATE participants SET concluded = TRUE WHERE concluded = FALSE AND updated_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(maxAge.Seconds())),
	)
	if err != nil {
		return 0, apperrors.NewPersistenceError("conclude stale participants", err)
	}

	return result.RowsAffected()
}

func (d *Directory) query(ctx context.Context, category string, limit int) ([]domain.Item, error) {
	const query = `
		SELECT id, label, counterpart, category, concluded
		FROM participants
		WHERE category = $1 AND concluded = FALSE
		ORDER BY rank DESC, label
		LIMIT $2
	`

	rows, err := d.db.QueryContext(ctx, query, category, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceError("lookup participants", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Label, &item.Counterpart, &item.Category, &item.Concluded); err != nil {
			return nil, apperrors.NewPersistenceError("scan participant", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("iterate participants", err)
	}

	return items, nil
}

func (d *Directory) fromCache(ctx context.Context, key string) ([]domain.Item, bool) {
	if d.cache == nil {
		return nil, false
	}

	data, err := d.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && d.log != nil {
			d.log.Warn("directory cache read failed", slog.Any("error", err))
		}
		return nil, false
	}

	var items []domain.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}

	return items, true
}

func (d *Directory) toCache(ctx context.Context, key string, items []domain.Item) {
	if d.cache == nil {
		return
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return
	}

	if err := d.cache.Set(ctx, key, payload, cacheTTL).Err(); err != nil && d.log != nil {
		d.log.Warn("directory cache write failed", slog.Any("error", err))
	}
}

func cacheKey(category string, scopeID int64, limit int) string {
	return fmt.Sprintf("directory:%s:%d:%d", category, scopeID, limit)
}
