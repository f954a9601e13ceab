package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/handlers"
	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
)

// RecoveryMiddleware catches handler panics, reports them through the error
// handler, and tells the user something went wrong.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler, t i18n.Translator) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))

					userMsg := fallbackErrorText(t)
					if errHandler != nil {
						appErr := apperrors.NewTerminalError("handler panicked", fmt.Errorf("panic: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for
// handler failures. Handlers that already replied return nil, so anything
// surfacing here has not been communicated yet.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler, t i18n.Translator) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := fallbackErrorText(t)
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs one line per handled update, tagged with a fresh
// correlation id so log entries from the same update can be tied together.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			correlationID := uuid.NewString()

			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := ""
			if c != nil {
				if cb := c.Callback(); cb != nil {
					action = trimCallbackData(cb.Data)
				} else {
					action = c.Text()
				}
			}

			err := next(c)

			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.String("correlation_id", correlationID),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

func fallbackErrorText(t i18n.Translator) string {
	if t != nil {
		if text := t.T("errors.internal"); text != "errors.internal" {
			return text
		}
	}
	return "Something went wrong on our side. Please try again."
}
