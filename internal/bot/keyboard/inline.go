package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// InlineButton is one prompt button before callback encoding.
type InlineButton struct {
	Text   string
	Unique string // callback namespace the dispatcher routes on
	Data   string // payload carried back when the button is pressed
}

// InlineKeyboardBuilder accumulates button rows and renders them into telebot
// inline markup in a single pass.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

// NewInlineKeyboard returns an empty builder.
func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{}
}

// AddRow appends one row of buttons. Empty rows are skipped.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	b.rows = append(b.rows, append([]InlineButton(nil), buttons...))
	return b
}

// Build renders the accumulated rows, running every button's namespace and
// payload through the encoder to produce its final callback data.
func (b *InlineKeyboardBuilder) Build(encoder func(unique, data string) string) *telebot.ReplyMarkup {
	if encoder == nil {
		encoder = func(unique, data string) string {
			if data != "" {
				return data
			}
			return unique
		}
	}

	keyboard := make([][]telebot.InlineButton, 0, len(b.rows))
	for _, row := range b.rows {
		line := make([]telebot.InlineButton, 0, len(row))
		for _, btn := range row {
			line = append(line, telebot.InlineButton{
				Text:   btn.Text,
				Unique: btn.Unique,
				Data:   encoder(btn.Unique, btn.Data),
			})
		}
		keyboard = append(keyboard, line)
	}

	return &telebot.ReplyMarkup{InlineKeyboard: keyboard}
}
