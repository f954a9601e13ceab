package bot

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/handlers"
	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/session"
)

// newFlowHandler starts a builder session in the given mode and presents the
// first prompt. Starting while another session is live silently discards the
// old draft; the engine handles the teardown.
func newFlowHandler(engine *session.Engine, surface *Surface, mode catalog.Mode, log *slog.Logger) handlers.Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		scopeID := c.Sender().ID
		if chat := c.Chat(); chat != nil {
			scopeID = chat.ID
		}

		res, err := engine.Start(context.Background(), c.Sender().ID, scopeID, mode)
		if err != nil {
			if log != nil {
				log.Error("failed to start session",
					slog.Int64("user_id", c.Sender().ID),
					slog.String("mode", string(mode)),
					slog.Any("error", err))
			}
			return err
		}

		return surface.Present(c, res)
	}
}

// newUnknownHandler answers free text that reached nobody.
func newUnknownHandler(surface *Surface) handlers.Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Message() == nil {
			return nil
		}

		return c.Send(surface.translate("commands.unknown", "I don't know that command. Try /bet, /parlay or /browse."))
	}
}
