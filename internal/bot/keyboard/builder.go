package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
)

// OptionUnique is the callback namespace for step option buttons.
const OptionUnique = "opt"

// optionsPerPage caps how many option rows one prompt shows before the
// keyboard starts paging.
const optionsPerPage = 8

// Builder renders builder-step prompts into inline keyboards.
type Builder struct {
	t   i18n.Translator
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(t i18n.Translator, log *slog.Logger) *Builder {
	return &Builder{t: t, log: log}
}

// StepOptions renders a single-choice step's options, one button per row so
// long labels stay readable. Lists longer than one page get a pagination row;
// options whose encoded payload would exceed the platform's callback limit
// are dropped with a log line rather than breaking the whole keyboard.
func (b *Builder) StepOptions(spec *catalog.StepSpec, page int) *telebot.ReplyMarkup {
	options := make([]catalog.Option, 0, len(spec.Options))
	for _, opt := range spec.Options {
		if _, err := EncodeCallback(OptionUnique, opt.Value); err != nil {
			if b.log != nil {
				b.log.Warn("option dropped, callback payload too long",
					slog.String("step", string(spec.Step)),
					slog.String("value", opt.Value))
			}
			continue
		}
		options = append(options, opt)
	}

	totalPages := (len(options) + optionsPerPage - 1) / optionsPerPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = clampPage(page, totalPages)

	start := (page - 1) * optionsPerPage
	end := start + optionsPerPage
	if end > len(options) {
		end = len(options)
	}

	kb := NewInlineKeyboard()
	for _, opt := range options[start:end] {
		kb.AddRow(InlineButton{
			Text:   opt.Label,
			Unique: OptionUnique,
			Data:   opt.Value,
		})
	}

	if totalPages > 1 {
		kb.AddRow(PaginationButtons(b.t, page, totalPages)...)
	}

	return kb.Build(encodeOrUnique)
}

// CancelRow builds the lone cancel button shown under free-text prompts.
func (b *Builder) CancelRow(label string) *telebot.ReplyMarkup {
	if label == "" {
		label = "Cancel"
	}

	return NewInlineKeyboard().
		AddRow(InlineButton{Text: label, Unique: "flow", Data: "cancel"}).
		Build(encodeOrUnique)
}

func encodeOrUnique(unique, data string) string {
	payload, err := EncodeCallback(unique, data)
	if err != nil {
		return unique
	}
	return payload
}
