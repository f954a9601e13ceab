package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Run("returns nil on first success", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient failures until success", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return NewTransientError("renderer", errors.New("timeout"))
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return NewTransientError("renderer", errors.New("timeout"))
		})

		require.Error(t, err)
		assert.Equal(t, MaxRetries+1, calls)
	})

	t.Run("terminal errors are not retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return NewTerminalError("channel rejected the slip", errors.New("403"))
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("plain errors are not retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errors.New("unclassified")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context wins over remaining attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			cancel()
			return NewTransientError("renderer", errors.New("timeout"))
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(NewTransientError("redis", errors.New("down"))))
	assert.True(t, IsRetryable(NewPersistenceError("update", errors.New("deadlock"))))
	assert.False(t, IsRetryable(NewValidationError("bad input")))
	assert.False(t, IsRetryable(NewTerminalError("rejected", nil)))
}

func TestCalculateBackoffDuration(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, calculateBackoffDuration(1))
	assert.Equal(t, 400*time.Millisecond, calculateBackoffDuration(2))
	assert.Equal(t, MaxBackoff, calculateBackoffDuration(10))
}
