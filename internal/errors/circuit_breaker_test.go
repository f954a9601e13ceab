package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker()
	boom := errors.New("lookup failed")

	// A few failures under the minimum request count never trip the breaker.
	for i := 0; i < defaultMinRequests-1; i++ {
		_ = cb.Call(func() error { return boom })
	}

	assert.Equal(t, BreakerClosed, cb.State())
	assert.NoError(t, cb.Call(func() error { return nil }))
}

func TestCircuitBreakerOpensOnErrorRate(t *testing.T) {
	cb := NewCircuitBreaker()
	boom := errors.New("lookup failed")

	for i := 0; i < defaultMinRequests; i++ {
		err := cb.Call(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, BreakerOpen, cb.State())

	// While open, calls fail fast without touching the collaborator.
	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker()
	boom := errors.New("lookup failed")

	for i := 0; i < defaultMinRequests; i++ {
		_ = cb.Call(func() error { return boom })
	}
	require.Equal(t, BreakerOpen, cb.State())

	// Age the failure past the open timeout instead of sleeping.
	cb.mu.Lock()
	cb.lastFailureTime = time.Now().Add(-defaultOpenTimeout - time.Second)
	cb.mu.Unlock()

	for i := 0; i < defaultHalfOpenMaxRequests; i++ {
		require.NoError(t, cb.Call(func() error { return nil }))
	}

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker()
	boom := errors.New("lookup failed")

	for i := 0; i < defaultMinRequests; i++ {
		_ = cb.Call(func() error { return boom })
	}
	require.Equal(t, BreakerOpen, cb.State())

	cb.mu.Lock()
	cb.lastFailureTime = time.Now().Add(-defaultOpenTimeout - time.Second)
	cb.mu.Unlock()

	err := cb.Call(func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, BreakerOpen, cb.State())
}

func TestCircuitBreakerNilFn(t *testing.T) {
	cb := NewCircuitBreaker()
	assert.NoError(t, cb.Call(nil))
}
