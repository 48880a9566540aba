package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/dmitrymomot/storefront/pkg/queue"
)

// Real-time channel metrics
var (
	// ConnectedSessions tracks open real-time sessions on this instance
	ConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_connected_sessions",
			Help: "Number of open real-time sessions",
		},
	)

	// BroadcastSendFailures counts per-session sends that failed during a broadcast
	BroadcastSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_send_failures_total",
			Help: "Total failed per-session sends during broadcasts",
		},
	)

	// InboundFramesDropped counts frames discarded by the per-connection limiter
	InboundFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_inbound_frames_dropped_total",
			Help: "Total inbound frames dropped by rate limiting",
		},
	)
)

// Dispatcher metrics
var (
	// JobsSubmitted counts accepted submissions by operation and mode
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_submitted_total",
			Help: "Total jobs accepted by the dispatcher by operation and mode",
		},
		[]string{"operation", "mode"},
	)

	// SubmitFailures counts submissions rejected because the broker was unavailable
	SubmitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_submit_failures_total",
			Help: "Total submissions that failed by operation",
		},
		[]string{"operation"},
	)

	// JobsFinished counts executed jobs by operation and terminal status
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_finished_total",
			Help: "Total job executions by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	// JobDuration tracks handler execution time in seconds
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_job_duration_seconds",
			Help:    "Job handler execution time in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// JobsPromoted counts schedule entries moved to the ready queue
	JobsPromoted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_jobs_promoted_total",
			Help: "Total scheduled jobs promoted to the ready queue",
		},
	)

	// JobsRequeued counts running jobs returned to the ready queue after lease expiry
	JobsRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_jobs_requeued_total",
			Help: "Total jobs requeued after their lease expired",
		},
	)
)

// Infrastructure metrics
var (
	// CircuitBreakerState tracks the broker circuit breaker (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)
)

// ObserveSubmitted is a queue.WithOnSubmitted hook
func ObserveSubmitted(job *queue.Job) {
	JobsSubmitted.WithLabelValues(job.Operation, string(job.Mode)).Inc()
}

// ObserveSubmitFailed is a queue.WithOnSubmitFailed hook
func ObserveSubmitFailed(operation string, _ error) {
	SubmitFailures.WithLabelValues(operation).Inc()
}

// ObserveJobFinished is a queue.WithOnJobFinished hook
func ObserveJobFinished(job *queue.Job, status queue.JobStatus, d time.Duration) {
	JobsFinished.WithLabelValues(job.Operation, string(status)).Inc()
	JobDuration.WithLabelValues(job.Operation).Observe(d.Seconds())
}

// ObservePromoted is a queue.WithOnPromoted hook
func ObservePromoted(n int) {
	JobsPromoted.Add(float64(n))
}

// ObserveRequeued is a queue.WithOnRequeued hook
func ObserveRequeued(n int) {
	JobsRequeued.Add(float64(n))
}

// ObserveSessions is a broadcast.WithSizeCallback hook
func ObserveSessions(n int) {
	ConnectedSessions.Set(float64(n))
}

// ObserveSendFailure is a broadcast.WithSendFailureCallback hook
func ObserveSendFailure(string, error) {
	BroadcastSendFailures.Inc()
}

// BreakerStateChange returns a state-change hook for the named breaker
func BreakerStateChange(component string) func(from, to gobreaker.State) {
	return func(_, to gobreaker.State) {
		CircuitBreakerState.WithLabelValues(component).Set(breakerStateValue(to))
		CircuitBreakerStateChanges.WithLabelValues(component, to.String()).Inc()
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
