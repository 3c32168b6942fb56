// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RealtimeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_realtime_connections",
			Help: "Number of registered websocket connections per pool",
		},
		[]string{"pool"},
	)

	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dispatch_total",
			Help: "Notification channel attempts by kind, channel and outcome",
		},
		[]string{"kind", "channel", "outcome"},
	)

	PushSubscriptionsDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_push_subscriptions_deactivated_total",
			Help: "Push subscriptions deactivated after the push service reported them gone",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)

// Outcome label values for DispatchTotal.
const (
	OutcomeSent        = "sent"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)
