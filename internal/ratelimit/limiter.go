// Package ratelimit throttles builder traffic per user: one default window
// for ordinary inputs and a tighter one for the session-opening commands.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Result is one rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter evaluates a sliding window for a key. Check both records the
// request and answers whether it fit inside the window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded indicates the window is full for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")
