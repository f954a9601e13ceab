package logger

import (
	"context"
	"log/slog"
	"strings"
)

// sensitiveMarkers flag attribute keys whose values must never reach the log
// sink. Matched as substrings so "bot_token" and "sentry_dsn" are caught
// without enumerating every spelling.
var sensitiveMarkers = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"authorization",
	"dsn",
}

const maskedValue = "***"

// MaskingHandler is a slog.Handler decorator that blanks sensitive attribute
// values before the record reaches the real handler. The bot token in
// particular tends to leak through error strings and config dumps.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next with attribute masking.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = maskAttr(attr)
	}

	return &MaskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, clean)
}

// maskAttr blanks sensitive values, descending into groups so a nested
// "redis.password" does not slip through.
func maskAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		masked := make([]slog.Attr, len(members))
		for i, member := range members {
			masked[i] = maskAttr(member)
		}
		attr.Value = slog.GroupValue(masked...)
		return attr
	}

	if isSensitiveKey(attr.Key) {
		attr.Value = slog.StringValue(maskedValue)
	}

	return attr
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}
