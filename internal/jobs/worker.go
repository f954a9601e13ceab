package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// workerConcurrency caps how many maintenance tasks run at once. The jobs are
// IO-bound sweeps against the same database the bot serves from, so the cap
// stays modest.
const workerConcurrency = 10

// Worker consumes maintenance tasks from the shared Redis instance.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

// NewWorker builds a Worker draining the given queues.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      queues,
		Concurrency: workerConcurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error("maintenance task failed",
				slog.String("type", task.Type()),
				slog.Any("error", err))
		}),
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RegisterHandler wires a task type to its handler. Must be called before
// Run; the mux is not safe to mutate while serving.
func (w *Worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks processing tasks until Shutdown is called.
func (w *Worker) Run() error {
	w.log.Info("jobs worker: starting processing loop")
	return w.server.Run(w.mux)
}

// Shutdown waits for in-flight tasks before stopping the server.
func (w *Worker) Shutdown() {
	w.log.Info("jobs worker: shutting down")
	w.server.Shutdown()
}
