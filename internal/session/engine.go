package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
)

// ErrNoSession indicates that the user has no live builder session.
var ErrNoSession = errors.New("no active session")

// ErrBusy indicates a transition is mid-flight and a read-only redraw should
// be dropped rather than waited on.
var ErrBusy = errors.New("session transition in flight")

// Config carries the engine's tunable lifetimes.
type Config struct {
	// BuildTTL is the inactivity deadline for full slip constructions.
	BuildTTL time.Duration
	// BrowseTTL is the inactivity deadline for the browse sub-flow.
	BrowseTTL time.Duration
}

// Publication reports a successful confirm-and-publish.
type Publication struct {
	RecordID  int64
	ChannelID int64
	MessageID int
}

// Result is what one engine call hands back to the interaction surface.
type Result struct {
	// Spec is the next prompt to present, nil on terminal results.
	Spec *catalog.StepSpec

	// Notice is user-facing text: an inline validation message, a terminal
	// failure, or closing information.
	Notice string

	// Busy means the input was dropped because a transition was already in
	// flight. The caller acknowledges and changes nothing.
	Busy bool

	// Stopped means the session no longer exists.
	Stopped bool

	// Published is set on terminal success.
	Published *Publication

	// PreviewData carries a freshly rendered artifact that should be sent
	// as a separate message, since prompts delivered as edits cannot grow
	// an attachment.
	PreviewData []byte

	// Replace hints that the prompt may replace the previous one in place.
	Replace bool
}

// Engine orchestrates all live sessions. Sessions are independent; each one
// serializes its own transitions through the in-flight guard while the
// engine map only needs protection for lookup and removal.
type Engine struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	catalog   *catalog.Catalog
	ledger    Ledger
	renderer  Renderer
	publisher Publisher
	cfg       Config
	log       *slog.Logger

	onExpire func(s *Session)
}

// NewEngine wires the engine to its collaborators.
func NewEngine(cat *catalog.Catalog, ledger Ledger, renderer Renderer, publisher Publisher, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BuildTTL <= 0 {
		cfg.BuildTTL = 30 * time.Minute
	}
	if cfg.BrowseTTL <= 0 {
		cfg.BrowseTTL = 5 * time.Minute
	}

	return &Engine{
		sessions:  make(map[int64]*Session),
		catalog:   cat,
		ledger:    ledger,
		renderer:  renderer,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// SetExpiryNotifier registers the callback invoked after a session expires,
// so the surface can tell the user with a message distinct from cancel.
func (e *Engine) SetExpiryNotifier(fn func(s *Session)) {
	e.onExpire = fn
}

// Active reports whether the user currently has a live session.
func (e *Engine) Active(ownerID int64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[ownerID]
	return ok && !s.Closed()
}

// Start opens a fresh session for the user and returns the first prompt.
// Any previous session for the same user is cancelled first.
func (e *Engine) Start(ctx context.Context, ownerID, scopeID int64, mode catalog.Mode) (*Result, error) {
	if prev := e.lookup(ownerID); prev != nil {
		e.closeSession(ctx, prev, EventCancelled, true)
	}

	ttl := e.cfg.BuildTTL
	if mode == catalog.ModeBrowse {
		ttl = e.cfg.BrowseTTL
	}

	draft := domain.NewDraft()
	draft.Set(domain.FieldScopeID, strconv.FormatInt(scopeID, 10))

	s := &Session{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		ScopeID: scopeID,
		Mode:    mode,
		Step:    e.catalog.EntryStep(),
		Draft:   draft,
		ttl:     ttl,
	}
	s.armTimer(func() { e.expire(s) })

	e.mu.Lock()
	e.sessions[ownerID] = s
	e.mu.Unlock()

	lifecycleRecorder(EventStarted, string(mode))

	spec, err := e.catalog.Spec(ctx, mode, s.Step, draft)
	if err != nil {
		e.closeSession(ctx, s, EventFailed, true)
		return nil, err
	}

	e.log.Info("session started",
		slog.String("session_id", s.ID),
		slog.Int64("owner_id", ownerID),
		slog.String("mode", string(mode)))

	return &Result{Spec: spec}, nil
}

// Advance delivers one raw input to the user's session. At most one
// transition runs at a time: a duplicate delivered mid-transition is dropped
// with Busy set, never an error. Validation failures are returned inline
// with the step and draft unchanged.
func (e *Engine) Advance(ctx context.Context, ownerID int64, in catalog.Input) (*Result, error) {
	s := e.lookup(ownerID)
	if s == nil {
		return nil, ErrNoSession
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return &Result{Busy: true}, nil
	}
	defer s.inFlight.Store(false)

	if s.Closed() {
		return nil, ErrNoSession
	}

	out, err := e.catalog.Apply(ctx, s.Mode, s.Step, s.Draft, in)
	if err != nil {
		var vErr *catalog.ValidationError
		if errors.As(err, &vErr) {
			return &Result{Notice: vErr.Error()}, nil
		}
		return nil, err
	}

	if out.Cancelled {
		e.closeSession(ctx, s, EventCancelled, true)
		return &Result{Stopped: true, Notice: "Slip discarded."}, nil
	}

	result := &Result{Replace: in.Kind == catalog.InputChoice}

	// Bridge effects tied to specific transitions. Failures here are
	// non-terminal: they are logged and the session carries on; the record
	// is repaired on the next mutating step.
	if out.LegAppended && s.recordID.Load() == 0 {
		if perr := e.persistDraft(ctx, s); perr != nil {
			e.log.Error("initial parlay persist failed",
				slog.String("session_id", s.ID), slog.Any("error", perr))
		}
	}

	if s.Step == catalog.StepStake && out.Next == catalog.StepDestination {
		if perr := e.persistDraft(ctx, s); perr != nil {
			e.log.Error("stake persist failed",
				slog.String("session_id", s.ID), slog.Any("error", perr))
		}
		if rerr := e.refreshPreview(ctx, s); rerr != nil {
			e.log.Warn("preview render failed, continuing without preview",
				slog.String("session_id", s.ID), slog.Any("error", rerr))
		} else if a := s.Preview().Peek(); a != nil {
			result.PreviewData = a.Data
			// A new attachment cannot ride on an edited message.
			result.Replace = false
		}
	}

	// A cancel or expiry may have landed while the bridge work above was in
	// flight. Its teardown already spoke to the user; drop this transition's
	// output and sweep whatever it produced.
	if s.Closed() {
		s.Preview().Clear()
		e.reapRecord(ctx, s)
		return &Result{Stopped: true}, nil
	}

	prev := s.Step
	s.Step = out.Next
	transitionRecorder(string(prev), string(out.Next))
	s.armTimer(func() { e.expire(s) })

	if out.Next == catalog.StepDone {
		if out.Finalized {
			return e.publish(ctx, s)
		}

		// Browse and other non-publishing flows end here.
		e.closeSession(ctx, s, EventCompleted, true)
		result.Stopped = true
		result.Notice = out.Notice
		return result, nil
	}

	spec, err := e.catalog.Spec(ctx, s.Mode, s.Step, s.Draft)
	if err != nil {
		if errors.Is(err, catalog.ErrNoDestinations) {
			e.closeSession(ctx, s, EventFailed, true)
			return &Result{Stopped: true, Notice: "No publish destinations are configured. Ask an admin to add one."}, nil
		}
		return nil, err
	}

	result.Spec = spec
	return result, nil
}

// CurrentSpec re-renders the prompt for the session's current step without
// advancing it, for redraws such as paging through a long option list. A
// mid-flight transition reports ErrBusy; the caller drops the redraw.
func (e *Engine) CurrentSpec(ctx context.Context, ownerID int64) (*catalog.StepSpec, error) {
	s := e.lookup(ownerID)
	if s == nil {
		return nil, ErrNoSession
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.inFlight.Store(false)

	if s.Closed() {
		return nil, ErrNoSession
	}

	return e.catalog.Spec(ctx, s.Mode, s.Step, s.Draft)
}

// Cancel tears the session down: the preview handle is released, the
// unconfirmed ledger record deleted, and the session destroyed. It never
// waits on the in-flight guard and is idempotent.
func (e *Engine) Cancel(ctx context.Context, ownerID int64, reason string) error {
	s := e.lookup(ownerID)
	if s == nil {
		return ErrNoSession
	}

	e.log.Info("session cancelled",
		slog.String("session_id", s.ID),
		slog.Int64("owner_id", ownerID),
		slog.String("reason", reason))

	e.closeSession(ctx, s, EventCancelled, true)
	return nil
}

// expire behaves like cancel but reports through the expiry notifier so the
// user sees a timeout message rather than a cancellation one.
func (e *Engine) expire(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !e.closeSession(ctx, s, EventExpired, true) {
		return
	}

	e.log.Info("session expired",
		slog.String("session_id", s.ID),
		slog.Int64("owner_id", s.OwnerID))

	if e.onExpire != nil {
		e.onExpire(s)
	}
}

// publish runs the publication bridge on final confirmation. Failures here
// are terminal: reported once, session stopped, never retried, because the
// external side effect may already be partially applied.
func (e *Engine) publish(ctx context.Context, s *Session) (*Result, error) {
	if perr := e.persistDraft(ctx, s); perr != nil {
		e.log.Error("terminal persist failed", slog.String("session_id", s.ID), slog.Any("error", perr))
		e.closeSession(ctx, s, EventFailed, false)
		return &Result{Stopped: true, Notice: "Saving the slip failed; it was not published. Start over when ready."}, nil
	}

	channelID, err := strconv.ParseInt(s.Draft.Get(domain.FieldChannelID), 10, 64)
	if err != nil {
		e.closeSession(ctx, s, EventFailed, false)
		return nil, fmt.Errorf("confirm reached without a destination: %w", err)
	}

	artifact := e.publicationArtifact(ctx, s)
	caption := catalog.Summary(s.Draft, s.Mode)

	messageID, err := e.publisher.Publish(ctx, channelID, artifact, caption)
	if err != nil {
		msg, _ := terminalMessage(err)
		e.log.Error("publish failed", slog.String("session_id", s.ID), slog.Any("error", err))
		e.closeSession(ctx, s, EventFailed, false)
		return &Result{Stopped: true, Notice: msg}, nil
	}

	recordID := s.recordID.Load()
	if aerr := e.ledger.AttachPublication(ctx, recordID, channelID, messageID); aerr != nil {
		e.log.Error("attach publication failed", slog.Int64("record_id", recordID), slog.Any("error", aerr))
	}
	if cerr := e.ledger.MarkConfirmed(ctx, recordID); cerr != nil {
		e.log.Error("mark confirmed failed", slog.Int64("record_id", recordID), slog.Any("error", cerr))
	}

	s.confirmed.Store(true)
	e.closeSession(ctx, s, EventPublished, false)

	return &Result{
		Stopped:   true,
		Notice:    "Slip published ✅",
		Published: &Publication{RecordID: recordID, ChannelID: channelID, MessageID: messageID},
	}, nil
}

// closeSession performs the exactly-once teardown: stop the timer, release
// the preview handle, delete the unconfirmed record when asked to, drop the
// session from the map. It never waits on the in-flight guard; the shared
// state it touches is synchronized on its own (timer mutex, slot mutex,
// atomic record id), and an advance caught mid-flight finishes the sweep
// itself when it observes the closed flag.
func (e *Engine) closeSession(ctx context.Context, s *Session, event string, deleteRecord bool) bool {
	if !s.Close() {
		return false
	}

	s.stopTimer()
	s.Preview().Clear()

	if deleteRecord {
		e.reapRecord(ctx, s)
	}

	e.mu.Lock()
	if current, ok := e.sessions[s.OwnerID]; ok && current == s {
		delete(e.sessions, s.OwnerID)
	}
	e.mu.Unlock()

	lifecycleRecorder(event, string(s.Mode))
	return true
}

// reapRecord deletes the session's unconfirmed ledger record, if one exists.
// Deletion is idempotent by id, so both sides of a teardown race may call
// this and the row still goes away exactly once.
func (e *Engine) reapRecord(ctx context.Context, s *Session) {
	id := s.recordID.Load()
	if id == 0 || s.confirmed.Load() {
		return
	}

	if err := e.ledger.Delete(ctx, id); err != nil {
		e.log.Error("failed to delete in-progress record",
			slog.Int64("record_id", id), slog.Any("error", err))
	}
}

func (e *Engine) lookup(ownerID int64) *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[ownerID]
}

func terminalMessage(err error) (string, bool) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr != nil && appErr.UserMessage != "" {
		return "Publishing failed: " + appErr.UserMessage, true
	}
	return "Publishing failed: " + err.Error(), false
}

// AttachPublisher sets the channel publisher after construction. The
// publisher rides on the bot connection, which itself needs the engine, so
// wiring closes the loop here. Must happen before any session confirms.
func (e *Engine) AttachPublisher(p Publisher) {
	e.publisher = p
}
