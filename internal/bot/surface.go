package bot

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/keyboard"
	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
	"github.com/wagerdeck/wagerdeck-bot/internal/session"
)

// Surface translates engine results into Telegram messages: choice prompts
// become inline keyboards, forms become text prompts, and terminal results
// become plain notices.
type Surface struct {
	kb  *keyboard.Builder
	t   i18n.Translator
	log *slog.Logger
}

// NewSurface builds the presentation layer.
func NewSurface(kb *keyboard.Builder, t i18n.Translator, log *slog.Logger) *Surface {
	return &Surface{
		kb:  kb,
		t:   t,
		log: log,
	}
}

// Present delivers one engine result to the chat. Prompts caused by a button
// press replace the previous prompt in place when the engine allows it; text
// input always produces a new message so the user's own message stays visible
// above the response.
func (s *Surface) Present(c telebot.Context, res *session.Result) error {
	if res == nil {
		return nil
	}

	if res.Busy {
		return s.ack(c, s.translate("builder.busy", "Hold on, still working on your previous input."))
	}

	if err := s.ack(c, ""); err != nil && s.log != nil {
		s.log.Debug("callback ack failed", slog.Any("error", err))
	}

	if len(res.PreviewData) > 0 {
		if err := s.sendPreview(c, res.PreviewData); err != nil && s.log != nil {
			s.log.Warn("failed to deliver preview", slog.Any("error", err))
		}
	}

	if res.Spec != nil {
		return s.prompt(c, res.Spec, 1, res.Replace)
	}

	if res.Notice != "" {
		return c.Send(res.Notice)
	}

	return nil
}

// PresentPage redraws the current choice prompt at another page of its
// option list. Always delivered as an edit when possible, since the prompt
// being flipped is the message the button lives on.
func (s *Surface) PresentPage(c telebot.Context, spec *catalog.StepSpec, page int) error {
	if err := s.ack(c, ""); err != nil && s.log != nil {
		s.log.Debug("callback ack failed", slog.Any("error", err))
	}

	return s.prompt(c, spec, page, true)
}

// prompt renders one step specification.
func (s *Surface) prompt(c telebot.Context, spec *catalog.StepSpec, page int, replace bool) error {
	text := promptText(spec)

	var markup *telebot.ReplyMarkup
	switch spec.Kind {
	case catalog.PromptChoice:
		markup = s.kb.StepOptions(spec, page)
	default:
		markup = s.kb.CancelRow(s.translate("builder.cancel_button", "✖️ Cancel"))
	}

	if replace && c.Callback() != nil {
		if err := c.Edit(text, markup); err == nil {
			return nil
		}
		// Edits fail when the original message is too old or already gone;
		// degrade to a fresh message.
	}

	return c.Send(text, markup)
}

func (s *Surface) sendPreview(c telebot.Context, data []byte) error {
	photo := &telebot.Photo{
		File:    telebot.FromReader(bytes.NewReader(data)),
		Caption: s.translate("builder.preview_caption", "Here's how your slip will look."),
	}

	return c.Send(photo)
}

// ack answers the pending callback so the client stops showing a spinner.
// Harmless on non-callback updates.
func (s *Surface) ack(c telebot.Context, text string) error {
	if c.Callback() == nil {
		if text != "" {
			return c.Send(text)
		}
		return nil
	}

	return c.Respond(&telebot.CallbackResponse{Text: text})
}

func (s *Surface) translate(key, fallback string) string {
	if s.t == nil {
		return fallback
	}

	if text := s.t.T(key); text != key {
		return text
	}

	return fallback
}

func promptText(spec *catalog.StepSpec) string {
	var b strings.Builder

	if spec.Title != "" {
		b.WriteString(spec.Title)
	}
	if spec.Body != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(spec.Body)
	}

	if spec.Kind == catalog.PromptForm && len(spec.Fields) > 0 {
		b.WriteString("\n\nSend one message, one value per line:")
		for i, f := range spec.Fields {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, f.Prompt))
		}
	}

	return b.String()
}
