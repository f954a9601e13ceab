// Package publish posts finished bet slips to their destination channels.
package publish

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
	"github.com/wagerdeck/wagerdeck-bot/pkg/metrics"
)

// Publisher posts slip artifacts to Telegram channels through the bot API.
type Publisher struct {
	bot *tele.Bot
	log *slog.Logger
}

// NewPublisher creates a channel publisher bound to the bot instance.
func NewPublisher(bot *tele.Bot, log *slog.Logger) *Publisher {
	return &Publisher{
		bot: bot,
		log: log,
	}
}

// Publish sends the artifact (or the caption alone when there is no
// artifact) to the channel and returns the posted message id. Transient API
// failures are retried; the caller treats a final failure as terminal.
func (p *Publisher) Publish(ctx context.Context, channelID int64, artifact []byte, caption string) (int, error) {
	recipient := tele.ChatID(channelID)

	var messageID int
	err := apperrors.WithRetry(ctx, func() error {
		var (
			msg     *tele.Message
			sendErr error
		)

		if len(artifact) > 0 {
			photo := &tele.Photo{
				File:    tele.FromReader(bytes.NewReader(artifact)),
				Caption: caption,
			}
			msg, sendErr = p.bot.Send(recipient, photo)
		} else {
			msg, sendErr = p.bot.Send(recipient, caption)
		}

		if sendErr != nil {
			return classifySendError(sendErr)
		}

		messageID = msg.ID
		return nil
	})
	if err != nil {
		metrics.RecordPublish("failure")
		if p.log != nil {
			p.log.Error("channel publish failed",
				slog.Int64("channel_id", channelID),
				slog.Any("error", err),
			)
		}
		return 0, err
	}

	metrics.RecordPublish("success")

	return messageID, nil
}

// classifySendError keeps retry scoped to outages. Telegram rejects like
// "chat not found" or "bot is not a member" will not heal on retry.
func classifySendError(err error) error {
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return apperrors.NewTransientError("telegram", err)
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 {
			return apperrors.NewTransientError("telegram", err)
		}
		return apperrors.NewTerminalError("channel rejected the slip", err)
	}

	// Network-level failures come through unwrapped.
	return apperrors.NewTransientError("telegram", err)
}
