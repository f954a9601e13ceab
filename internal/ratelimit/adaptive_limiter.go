package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	limiterChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	limiterRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_rejected_total",
		Help: "Rejected requests per backend.",
	}, []string{"backend"})

	limiterRedisErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_redis_errors_total",
		Help: "Redis errors encountered by the limiter.",
	})
)

// AdaptiveLimiter prefers the shared Redis window and degrades to the
// in-process one when Redis is unreachable. The fallback only sees one
// replica's traffic, so it gets half the budget.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter wires the two backends together.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{primary: primary, fallback: fallback, log: log}
}

// Check evaluates the limit against the primary backend, shifting to the
// fallback only on infrastructure errors. A full window from either backend
// comes back as ErrLimitExceeded.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	res, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		return tally("redis", res)
	}

	limiterRedisErrorsTotal.Inc()
	a.log.Warn("redis limiter failed, degrading to in-memory",
		slog.String("key", key),
		slog.Any("error", err))

	res, err = a.fallback.Check(ctx, key, halve(limit), window)
	if err != nil && res == nil {
		return nil, err
	}

	return tally("fallback", res)
}

// tally records the outcome and normalises a rejected result to
// ErrLimitExceeded regardless of which backend produced it.
func tally(backend string, res *Result) (*Result, error) {
	if res.Allowed {
		limiterChecksTotal.WithLabelValues(backend, "allowed").Inc()
		return res, nil
	}

	limiterChecksTotal.WithLabelValues(backend, "rejected").Inc()
	limiterRejectedTotal.WithLabelValues(backend).Inc()
	return res, ErrLimitExceeded
}

func halve(limit int) int {
	if limit <= 1 {
		return 1
	}
	return limit / 2
}
