package session

import (
	"context"
	"strconv"

	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
)

// Ledger is the external bet ledger. All operations are idempotent keyed by
// record id; Create is called at most once per session.
type Ledger interface {
	Create(ctx context.Context, rec *domain.BetRecord) (int64, error)
	Update(ctx context.Context, id int64, rec *domain.BetRecord) error
	Delete(ctx context.Context, id int64) error
	AttachPublication(ctx context.Context, id, channelID int64, messageID int) error
	MarkConfirmed(ctx context.Context, id int64) error
}

// Renderer produces the slip preview artifact. Stateless; may fail
// transiently, in which case the session proceeds without a preview.
type Renderer interface {
	Render(ctx context.Context, rec *domain.BetRecord) ([]byte, error)
}

// Publisher posts the finished slip to a channel and returns the resulting
// message id.
type Publisher interface {
	Publish(ctx context.Context, channelID int64, artifact []byte, caption string) (int, error)
}

// snapshot freezes the draft into the persisted record shape.
func snapshot(s *Session) *domain.BetRecord {
	d := s.Draft

	rec := &domain.BetRecord{
		ID:          s.recordID.Load(),
		OwnerID:     s.OwnerID,
		Category:    d.Get(domain.FieldCategory),
		LineType:    d.Get(domain.FieldLineType),
		Label:       d.Get(domain.FieldSubject),
		Counterpart: d.Get(domain.FieldCounterpart),
		Detail:      d.Get(domain.FieldDetail),
		Status:      domain.StatusDraft,
	}

	if s.Mode == catalog.ModeParlay {
		rec.Kind = domain.KindParlay
		rec.Legs = append([]domain.Leg(nil), d.Legs...)
		if len(rec.Legs) > 0 {
			// Provisional primary category from the first leg, superseded on
			// finalize only in the sense that later updates rewrite it too.
			rec.Category = rec.Legs[0].Category
		}
	} else {
		rec.Kind = domain.KindSingle
	}

	if format := d.Get(domain.FieldOddsFormat); format != "" {
		value, err := strconv.ParseFloat(d.Get(domain.FieldOddsValue), 64)
		if err == nil {
			rec.Odds = domain.Odds{Format: domain.OddsFormat(format), Value: value}
		}
	}

	if stake := d.Get(domain.FieldStake); stake != "" {
		if value, err := strconv.ParseFloat(stake, 64); err == nil {
			rec.Stake = value
		}
	}

	if channel := d.Get(domain.FieldChannelID); channel != "" {
		if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
			rec.ChannelID = id
		}
	}

	return rec
}

// persistDraft creates the ledger record on first call and updates it by id
// afterwards. The record id, once assigned, is never re-created: retried
// timeouts go through the idempotent update path.
func (e *Engine) persistDraft(ctx context.Context, s *Session) error {
	rec := snapshot(s)

	if s.recordID.Load() == 0 {
		id, err := e.ledger.Create(ctx, rec)
		if err != nil {
			return apperrors.NewPersistenceError("create", err)
		}
		s.recordID.Store(id)

		// A teardown that ran while Create was in flight saw a zero id and
		// had nothing to delete; finish its sweep here.
		if s.Closed() {
			e.reapRecord(ctx, s)
		}
		return nil
	}

	if err := e.ledger.Update(ctx, s.recordID.Load(), rec); err != nil {
		return apperrors.NewPersistenceError("update", err)
	}

	return nil
}

// refreshPreview renders a fresh artifact for the current draft and installs
// it, releasing any previous one. A render failure leaves the previous
// artifact in place and is reported to the caller for logging only.
func (e *Engine) refreshPreview(ctx context.Context, s *Session) error {
	if e.renderer == nil {
		return nil
	}

	data, err := e.renderer.Render(ctx, snapshot(s))
	if err != nil {
		return apperrors.NewTransientError("slip renderer", err)
	}

	s.Preview().Install(&Artifact{Data: data, DraftVersion: s.Draft.Version})

	return nil
}

// publicationArtifact returns the bytes to publish. A cached artifact from
// the current draft version is used as-is; otherwise a fresh render is
// attempted first and the stale cache is only the fallback.
func (e *Engine) publicationArtifact(ctx context.Context, s *Session) []byte {
	cached := s.Preview().Peek()
	if cached != nil && cached.DraftVersion == s.Draft.Version {
		return cached.Data
	}

	if err := e.refreshPreview(ctx, s); err == nil {
		if fresh := s.Preview().Peek(); fresh != nil {
			return fresh.Data
		}
	}

	if cached != nil {
		return cached.Data
	}

	return nil
}
