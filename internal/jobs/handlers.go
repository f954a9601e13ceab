package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wagerdeck/wagerdeck-bot/internal/directory"
	"github.com/wagerdeck/wagerdeck-bot/internal/repository"
)

// DraftCleanupHandler tombstones abandoned ledger drafts. Drafts normally die
// with their session; this catches the ones orphaned by crashes.
type DraftCleanupHandler struct {
	repo repository.BetRepository
	log  *slog.Logger
}

// NewDraftCleanupHandler wires the handler to the bet ledger.
func NewDraftCleanupHandler(repo repository.BetRepository, log *slog.Logger) *DraftCleanupHandler {
	return &DraftCleanupHandler{repo: repo, log: log}
}

// ProcessTask implements asynq.Handler.
func (h *DraftCleanupHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload DraftCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode draft cleanup payload: %w", err)
	}

	if payload.OlderThan <= 0 {
		payload.OlderThan = 24 * time.Hour
	}

	removed, err := h.repo.DeleteAbandoned(ctx, payload.OlderThan)
	if err != nil {
		return fmt.Errorf("delete abandoned drafts: %w", err)
	}

	if h.log != nil && removed > 0 {
		h.log.Info("abandoned drafts removed", slog.Int64("count", removed))
	}

	return nil
}

// DirectorySweepHandler retires participants that have not been refreshed.
type DirectorySweepHandler struct {
	dir *directory.Directory
	log *slog.Logger
}

// NewDirectorySweepHandler wires the handler to the participant directory.
func NewDirectorySweepHandler(dir *directory.Directory, log *slog.Logger) *DirectorySweepHandler {
	return &DirectorySweepHandler{dir: dir, log: log}
}

// ProcessTask implements asynq.Handler.
func (h *DirectorySweepHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload DirectorySweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode directory sweep payload: %w", err)
	}

	if payload.MaxAge <= 0 {
		payload.MaxAge = 7 * 24 * time.Hour
	}

	concluded, err := h.dir.ConcludeStale(ctx, payload.MaxAge)
	if err != nil {
		return fmt.Errorf("conclude stale participants: %w", err)
	}

	if h.log != nil && concluded > 0 {
		h.log.Info("stale participants concluded", slog.Int64("count", concluded))
	}

	return nil
}
