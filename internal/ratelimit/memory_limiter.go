package ratelimit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryLimiter keeps sliding windows in process memory. It is the degraded
// backend: each replica counts only its own traffic, so the adaptive wrapper
// hands it half the budget.
type MemoryLimiter struct {
	mu     sync.Mutex
	visits map[string][]time.Time
	log    *slog.Logger
}

// NewMemoryLimiter returns an empty in-process limiter.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		visits: make(map[string][]time.Time),
		log:    log,
	}
}

// Check prunes the key's window, then admits the request if the remaining
// count is under the limit. Admitted requests are recorded immediately.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	floor := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := pruneBefore(m.visits[key], floor)

	allowed := len(recent) < limit
	if allowed {
		recent = append(recent, now)
	}

	if len(recent) == 0 {
		delete(m.visits, key)
	} else {
		m.visits[key] = recent
	}

	remaining := limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}

	res := &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   floor.Add(window),
	}

	if !allowed {
		return res, ErrLimitExceeded
	}

	return res, nil
}

// Cleanup drops keys whose newest visit is older than maxAge. Called from the
// shared limiter cleaner so idle users do not pin memory between deploys.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for key, stamps := range m.visits {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(m.visits, key)
			dropped++
		}
	}

	if dropped > 0 {
		m.log.Debug("in-memory limiter keys dropped", slog.Int("count", dropped))
	}
}

// pruneBefore trims leading timestamps older than floor. Stamps are appended
// in order, so the cut point can be found by binary search.
func pruneBefore(stamps []time.Time, floor time.Time) []time.Time {
	cut := sort.Search(len(stamps), func(i int) bool {
		return !stamps[i].Before(floor)
	})

	if cut == 0 {
		return stamps
	}

	return append(stamps[:0], stamps[cut:]...)
}
