package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/keyboard"
	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
)

// NewStartHandler greets the user and shows the main menu.
func NewStartHandler(t i18n.Translator, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			if log != nil {
				log.Warn("start handler invoked without sender")
			}
			return nil
		}

		welcome := "Welcome to WagerDeck."
		if t != nil {
			welcome = t.T("commands.start")
		}

		return c.Send(welcome, keyboard.MainMenu(t))
	}
}
