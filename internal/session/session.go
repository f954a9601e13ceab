// Package session owns the interactive builder sessions: one logical actor
// per user whose step transitions are serialized by an in-flight guard, with
// a deadline, a scoped preview artifact, and bridges to the bet ledger and
// the channel publisher.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
)

// Session lifecycle events reported through the lifecycle recorder.
const (
	EventStarted   = "started"
	EventPublished = "published"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
	EventExpired   = "expired"
	EventFailed    = "failed"
)

var (
	transitionRecorder = func(from, to string) {}
	lifecycleRecorder  = func(event, mode string) {}
)

// RegisterTransitionRecorder allows external packages to observe step
// transitions. Passing nil resets to a no-op.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// RegisterLifecycleRecorder allows external packages to observe session
// lifecycle events. Passing nil resets to a no-op.
func RegisterLifecycleRecorder(recorder func(event, mode string)) {
	if recorder == nil {
		lifecycleRecorder = func(string, string) {}
		return
	}

	lifecycleRecorder = recorder
}

// Session is one user's in-progress builder workflow. It is owned
// exclusively by the Engine; everything mutable is either guarded by the
// in-flight flag or accessed through its own synchronization.
type Session struct {
	ID      string
	OwnerID int64
	ScopeID int64
	Mode    catalog.Mode
	Step    catalog.StepID
	Draft   *domain.Draft

	// inFlight is the at-most-one-concurrent-transition guard. A failed CAS
	// means another transition is mid-flight; the duplicate input is dropped.
	inFlight atomic.Bool

	// closed flips exactly once, on cancel, timeout, terminal failure, or
	// successful publication. Cancellation does not wait on the guard, so
	// cleanup idempotency hangs off this flag instead.
	closed atomic.Bool

	// confirmed is set once the record has been published; after that the
	// ledger row is never deleted by session cleanup.
	confirmed atomic.Bool

	// recordID is the externally assigned ledger id, zero until the first
	// persist. It lives here rather than on the draft because teardown reads
	// it without holding the in-flight guard.
	recordID atomic.Int64

	preview PreviewSlot

	timerMu sync.Mutex
	timer   *time.Timer
	ttl     time.Duration
}

// Close marks the session closed. It returns true exactly once.
func (s *Session) Close() bool {
	return s.closed.CompareAndSwap(false, true)
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Preview exposes the session's preview artifact slot.
func (s *Session) Preview() *PreviewSlot {
	return &s.preview
}

// armTimer (re)schedules the inactivity deadline. Each successful advance
// re-arms it, so the deadline tracks the last input rather than the start.
// The mutex covers the race with stopTimer, which teardown calls without
// holding the in-flight guard.
func (s *Session) armTimer(onExpire func()) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.ttl, onExpire)
}

func (s *Session) stopTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
}
