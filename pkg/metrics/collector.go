package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wagerdeck/wagerdeck-bot/internal/session"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "step_transitions_total",
			Help: "Total number of builder step transitions",
		},
		[]string{"from", "to"},
	)
	sessionsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_started_total",
			Help: "Total number of builder sessions started by mode",
		},
		[]string{"mode"},
	)
	sessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_closed_total",
			Help: "Total number of builder sessions closed by outcome",
		},
		[]string{"outcome"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of live builder sessions",
		},
	)
	renderFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_failures_total",
			Help: "Total number of slip preview render failures",
		},
	)
	publishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publishes_total",
			Help: "Total number of slip publish attempts by status",
		},
		[]string{"status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
)

func init() {
	session.RegisterTransitionRecorder(RecordStepTransition)
	session.RegisterLifecycleRecorder(RecordSessionEvent)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStepTransition counts a single builder step transition.
func RecordStepTransition(from, to string) {
	stepTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordSessionEvent tracks session lifecycle events and maintains the
// active-session gauge.
func RecordSessionEvent(event, mode string) {
	switch event {
	case session.EventStarted:
		sessionsStartedTotal.WithLabelValues(mode).Inc()
		activeSessions.Inc()
	case session.EventPublished, session.EventCompleted, session.EventCancelled, session.EventExpired, session.EventFailed:
		sessionsClosedTotal.WithLabelValues(event).Inc()
		activeSessions.Dec()
	}
}

// RecordRenderFailure counts a failed preview render.
func RecordRenderFailure() {
	renderFailuresTotal.Inc()
}

// RecordPublish counts a publish attempt.
func RecordPublish(status string) {
	publishesTotal.WithLabelValues(status).Inc()
}

// RecordError counts an error by type and severity.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}
