package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Manager enqueues maintenance tasks outside the cron schedule, such as the
// catch-up sweep run at startup.
type Manager interface {
	EnqueueDraftCleanup(ctx context.Context, olderThan time.Duration) error
	EnqueueDirectorySweep(ctx context.Context, maxAge time.Duration) error
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) EnqueueDraftCleanup(ctx context.Context, olderThan time.Duration) error {
	task, err := NewDraftCleanupTask(olderThan)
	if err != nil {
		return err
	}

	return m.enqueue(ctx, task)
}

func (m *manager) EnqueueDirectorySweep(ctx context.Context, maxAge time.Duration) error {
	task, err := NewDirectorySweepTask(maxAge)
	if err != nil {
		return err
	}

	return m.enqueue(ctx, task)
}

func (m *manager) enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}

	if m.log != nil {
		m.log.Info("task enqueued",
			slog.String("type", task.Type()),
			slog.String("queue", info.Queue))
	}

	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
