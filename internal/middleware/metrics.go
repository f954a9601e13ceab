package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/handlers"
	"github.com/wagerdeck/wagerdeck-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(actionLabel(c), status, time.Since(start))

		return err
	}
}

// actionLabel keeps metric cardinality bounded: slash commands and callback
// namespaces are labels, free text collapses into one bucket.
func actionLabel(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		data := strings.TrimPrefix(cb.Data, "\f")
		if idx := strings.Index(data, ":"); idx != -1 {
			data = data[:idx]
		}
		if data == "" {
			return "callback"
		}
		return "cb_" + data
	}

	text := c.Text()
	if strings.HasPrefix(text, "/") {
		if idx := strings.IndexAny(text, " @\n"); idx != -1 {
			text = text[:idx]
		}
		return text
	}

	if text != "" {
		return "text"
	}

	return "unknown"
}
