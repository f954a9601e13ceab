// Package repository implements the bet ledger on PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
)

// ErrNotFound indicates the record id does not exist (or was already deleted).
var ErrNotFound = errors.New("bet record not found")

// BetRepository defines the ledger persistence operations. Everything is
// keyed by record id and safe to retry; Create is the only blind insert and
// is called at most once per session by contract.
type BetRepository interface {
	Create(ctx context.Context, rec *domain.BetRecord) (int64, error)
	Update(ctx context.Context, id int64, rec *domain.BetRecord) error
	Delete(ctx context.Context, id int64) error
	AttachPublication(ctx context.Context, id, channelID int64, messageID int) error
	MarkConfirmed(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.BetRecord, error)
	DeleteAbandoned(ctx context.Context, olderThan time.Duration) (int64, error)
}

type betRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewBetRepository creates a SQL-backed bet ledger.
func NewBetRepository(db *sql.DB, log *slog.Logger) BetRepository {
	return &betRepository{
		db:  db,
		log: log,
	}
}

// Create inserts a new draft record and returns its assigned id.
func (r *betRepository) Create(ctx context.Context, rec *domain.BetRecord) (int64, error) {
	const query = `
		INSERT INTO bets (owner_id, kind, category, line_type, label, counterpart,
			detail, odds_format, odds_value, stake, legs, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id
	`

	legs, err := encodeLegs(rec.Legs)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := r.db.QueryRowContext(
		ctx,
		query,
		rec.OwnerID,
		rec.Kind,
		rec.Category,
		rec.LineType,
		rec.Label,
		rec.Counterpart,
		rec.Detail,
		rec.Odds.Format,
		rec.Odds.Value,
		rec.Stake,
		legs,
		domain.StatusDraft,
	).Scan(&id); err != nil {
		if r.log != nil {
			r.log.Error("failed to create bet record", slog.Int64("owner_id", rec.OwnerID), slog.Any("error", err))
		}
		return 0, fmt.Errorf("insert bet: %w", err)
	}

	return id, nil
}

// Update rewrites the mutable fields of an existing record by id.
func (r *betRepository) Update(ctx context.Context, id int64, rec *domain.BetRecord) error {
	const query = `
		UPDATE bets
		SET category = $2, line_type = $3, label = $4, counterpart = $5,
			detail = $6, odds_format = $7, odds_value = $8, stake = $9,
			legs = $10, updated_at = NOW()
		WHERE id = $1
	`

	legs, err := encodeLegs(rec.Legs)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		id,
		rec.Category,
		rec.LineType,
		rec.Label,
		rec.Counterpart,
		rec.Detail,
		rec.Odds.Format,
		rec.Odds.Value,
		rec.Stake,
		legs,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update bet record", slog.Int64("record_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("update bet: %w", err)
	}

	return requireRow(result)
}

// Delete removes an unconfirmed record. Deleting a missing record reports
// ErrNotFound, which cancel paths treat as already-done.
func (r *betRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bets WHERE id = $1 AND status = $2`, id, domain.StatusDraft)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to delete bet record", slog.Int64("record_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("delete bet: %w", err)
	}

	return requireRow(result)
}

// AttachPublication stores the channel and message the slip was posted to.
func (r *betRepository) AttachPublication(ctx context.Context, id, channelID int64, messageID int) error {
	const query = `
		UPDATE bets
		SET channel_id = $2, message_id = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, channelID, messageID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to attach publication", slog.Int64("record_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("attach publication: %w", err)
	}

	return requireRow(result)
}

// MarkConfirmed flips the record out of draft status. Idempotent.
func (r *betRepository) MarkConfirmed(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE bets SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, domain.StatusConfirmed,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to confirm bet record", slog.Int64("record_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("confirm bet: %w", err)
	}

	return requireRow(result)
}

// FindByID loads one record.
func (r *betRepository) FindByID(ctx context.Context, id int64) (*domain.BetRecord, error) {
	const query = `
		SELECT id, owner_id, kind, category, line_type, label, counterpart,
			detail, odds_format, odds_value, stake, legs, status,
			COALESCE(channel_id, 0), COALESCE(message_id, 0), created_at, updated_at
		FROM bets
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	var (
		rec  domain.BetRecord
		legs []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Kind,
		&rec.Category,
		&rec.LineType,
		&rec.Label,
		&rec.Counterpart,
		&rec.Detail,
		&rec.Odds.Format,
		&rec.Odds.Value,
		&rec.Stake,
		&legs,
		&rec.Status,
		&rec.ChannelID,
		&rec.MessageID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select bet by id: %w", err)
	}

	if len(legs) > 0 {
		if err := json.Unmarshal(legs, &rec.Legs); err != nil {
			return nil, fmt.Errorf("decode bet legs: %w", err)
		}
	}

	return &rec, nil
}

// DeleteAbandoned tombstones draft records that have not been touched for
// olderThan. Used by the cleanup job.
func (r *betRepository) DeleteAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM bets WHERE status = $1 AND updated_at < NOW() - $2::interval`,
		domain.StatusDraft,
		fmt.Sprintf("%d seconds", int64(olderThan.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("delete abandoned bets: %w", err)
	}

	return result.RowsAffected()
}

func encodeLegs(legs []domain.Leg) ([]byte, error) {
	if len(legs) == 0 {
		return []byte("[]"), nil
	}

	data, err := json.Marshal(legs)
	if err != nil {
		return nil, fmt.Errorf("encode bet legs: %w", err)
	}

	return data, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
