// Package idempotency deduplicates Telegram update handling across bot
// replicas. Each update is executed under a Redis lock and its outcome cached,
// so redelivered webhooks and long-poll races cannot double-apply a builder
// input or double-post a slip.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress signals that another replica holds the lock for this
// key right now. Callers drop the duplicate silently.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

const (
	lockTTL      = 5 * time.Minute
	pollInterval = 100 * time.Millisecond
)

// Operation is the guarded unit of work.
type Operation func(ctx context.Context) (any, error)

// Result carries the operation outcome and whether it was served from the
// completed-record cache instead of being executed.
type Result struct {
	Response  any
	FromCache bool
}

// Manager executes operations at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

// NewManager builds a Manager on top of the given record store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		locked, err := m.store.Lock(ctx, key, lockTTL)
		if err != nil {
			return nil, err
		}

		if locked {
			return m.run(ctx, key, ttl, fn)
		}

		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		switch {
		case record == nil:
			// Lock exists but no record yet: the holder is mid-flight and we
			// raced its first write. Wait and re-check.
		case record.Status == StatusProcessing:
			return nil, ErrRequestInProgress
		case record.Status == StatusCompleted:
			var response any
			if len(record.Response) > 0 {
				if err := json.Unmarshal(record.Response, &response); err != nil {
					return nil, err
				}
			}
			return &Result{Response: response, FromCache: true}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (m *manager) run(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer func() {
		if err := m.store.ReleaseLock(ctx, key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	responseBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: responseBytes,
	}, ttl); err != nil {
		return nil, err
	}

	return &Result{Response: result, FromCache: false}, nil
}
