package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// WithRetry runs fn until it succeeds, fails with a non-retryable error, or
// exhausts MaxRetries additional attempts. Backoff between attempts is
// exponential and a cancelled context wins over whatever budget is left.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !IsRetryable(err) {
			return err
		}

		attempt++
		if attempt > MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateBackoffDuration(attempt)):
		}
	}
}

// IsRetryable reports whether the error is an AppError flagged as safe to
// retry. Plain errors are conservative nos: retrying an unclassified failure
// risks double-publishing a slip.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

func calculateBackoffDuration(attempt int) time.Duration {
	delay := float64(InitialBackoff) * math.Pow(BackoffMultiplier, float64(attempt))
	if capped := time.Duration(delay); capped < MaxBackoff {
		return capped
	}

	return MaxBackoff
}
