package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
)

// MainMenu builds the localized persistent reply keyboard with the slip
// commands.
func MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: false,
	}

	betBtn := markup.Text(lookup(t, "main_menu.bet", "🎯 New bet"))
	parlayBtn := markup.Text(lookup(t, "main_menu.parlay", "🧩 New parlay"))
	browseBtn := markup.Text(lookup(t, "main_menu.browse", "👀 Browse lines"))
	cancelBtn := markup.Text(lookup(t, "main_menu.cancel", "✖️ Cancel draft"))

	markup.Reply(
		markup.Row(betBtn, parlayBtn),
		markup.Row(browseBtn, cancelBtn),
	)

	return markup
}
