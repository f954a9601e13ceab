package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/handlers"
	"github.com/wagerdeck/wagerdeck-bot/internal/idempotency"
)

// recordTTL is how long a processed update stays deduplicated. Telegram
// redelivers updates for at most a day, so anything older is a fresh event.
const recordTTL = 24 * time.Hour

// Idempotency drops redelivered Telegram updates: each update is keyed by
// its identifiers and executed at most once through the idempotency manager.
// Updates without a usable key pass through untouched.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler { return next }
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			_, err := manager.Execute(context.Background(), key, recordTTL, func(context.Context) (interface{}, error) {
				return nil, next(c)
			})

			switch {
			case err == nil:
				return nil
			case errors.Is(err, idempotency.ErrRequestInProgress):
				// A concurrent delivery of the same update is already being
				// handled; this copy is dropped.
				return nil
			default:
				log.Error("deduplicated handler failed", slog.String("key", key), slog.Any("error", err))
				return err
			}
		}
	}
}

// updateKey derives the deduplication key for an update. Callback queries
// carry a globally unique ID; messages are identified by chat and message
// ID. Both are hashed so the key length stays fixed.
func updateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil {
		if cb.ID != "" {
			return "cb:" + idempotency.GenerateKey(cb.ID)
		}

		if cb.Message != nil && cb.Message.Chat != nil {
			return "cb:" + idempotency.GenerateKey(cb.Message.Chat.ID, cb.Message.ID, cb.Data)
		}

		return ""
	}

	if msg := c.Message(); msg != nil && msg.Chat != nil && msg.ID != 0 {
		return "msg:" + idempotency.GenerateKey(msg.Chat.ID, msg.ID)
	}

	return ""
}
