package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/wagerdeck/wagerdeck-bot/pkg/logger"
)

// fallbackUserMessage is shown when an error carries no message of its own.
// Deliberately vague: failures often contain infrastructure detail the user
// should not see.
const fallbackUserMessage = "Something went wrong. Please try again later"

// Handler is the terminal stop for errors that escaped a bot handler: it
// logs them, forwards the severe ones to Sentry, and decides what the user
// in the chat gets told.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle records the error and returns the message that should reach the
// user plus whether inviting a retry makes sense.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		// Unclassified errors are treated as severe: they bypassed every
		// constructor in this package, so nothing vouches for them.
		h.logError(ctx, "unknown error", err.Error(), SeverityHigh, false)

		if h.sentryEnabled {
			h.report(err)
		}

		return fallbackUserMessage, false
	}

	h.logError(ctx, "application error", appErr.Message, appErr.Severity, appErr.Retryable,
		slog.String("code", appErr.Code),
		slog.String("kind", string(appErr.Kind)))

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.report(err)
	}

	if appErr.UserMessage != "" {
		return appErr.UserMessage, appErr.Retryable
	}

	return fallbackUserMessage, appErr.Retryable
}

func (h *Handler) logError(ctx context.Context, msg, detail string, severity Severity, retryable bool, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("message", detail),
		slog.String("severity", string(severity)),
		slog.Bool("retryable", retryable),
	}, extra...)

	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}

	h.log.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// report ships the error to Sentry with the classification as tags, so the
// dashboard can slice by kind and severity.
func (h *Handler) report(err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			for tag, value := range map[string]string{
				"code":     appErr.Code,
				"kind":     string(appErr.Kind),
				"severity": string(appErr.Severity),
			} {
				if value != "" {
					scope.SetTag(tag, value)
				}
			}
		}

		sentry.CaptureException(err)
	})
}
