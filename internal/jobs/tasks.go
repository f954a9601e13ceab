// Package jobs runs the maintenance work the interactive flows leave behind:
// tombstoning abandoned ledger drafts and retiring concluded directory
// entries.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeDraftCleanup   = "draft:cleanup"
	TaskTypeDirectorySweep = "directory:sweep"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DraftCleanupPayload bounds which drafts the cleanup touches.
type DraftCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// DirectorySweepPayload bounds which participants the sweep concludes.
type DirectorySweepPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewDraftCleanupTask deletes unconfirmed ledger drafts older than the cutoff.
func NewDraftCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(DraftCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeDraftCleanup, payload, asynq.Queue(QueueLow)), nil
}

// NewDirectorySweepTask concludes participants that stopped being refreshed.
func NewDirectorySweepTask(maxAge time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(DirectorySweepPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeDirectorySweep, payload, asynq.Queue(QueueLow)), nil
}
