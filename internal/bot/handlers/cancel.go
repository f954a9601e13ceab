package handlers

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
	"github.com/wagerdeck/wagerdeck-bot/internal/session"
)

// Canceller tears down a user's live builder session.
type Canceller interface {
	Cancel(ctx context.Context, ownerID int64, reason string) error
}

// NewCancelHandler discards the user's in-progress draft, if any.
func NewCancelHandler(canceller Canceller, t i18n.Translator, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		err := canceller.Cancel(context.Background(), c.Sender().ID, "user command")
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return c.Send(translate(t, "builder.no_session", "Nothing to cancel."))
			}

			if log != nil {
				log.Error("cancel failed", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
			}
			return err
		}

		return c.Send(translate(t, "builder.cancelled", "Draft discarded."))
	}
}

func translate(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	if text := t.T(key); text != key {
		return text
	}

	return fallback
}
