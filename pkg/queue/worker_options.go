package queue

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	clock              clockwork.Clock
	queues             []string
	pullInterval       time.Duration
	lockTimeout        time.Duration
	retryBackoff       time.Duration
	maxConcurrentTasks int
	shutdownTimeout    time.Duration
	logger             *slog.Logger
	onFinished         func(job *Job, status JobStatus, duration time.Duration)
}

// WithWorkerClock sets the clock for polling, leases and timestamps
func WithWorkerClock(clock clockwork.Clock) WorkerOption {
	return func(o *workerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithQueues sets which queues the worker should pull from
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval sets how often the worker checks for new jobs
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the lease duration for claimed jobs
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithRetryBackoff sets the base delay between retries; attempt n waits n times this
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.retryBackoff = d
		}
	}
}

// WithMaxConcurrentTasks sets the maximum number of concurrent jobs
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight jobs.
// Jobs still running afterwards keep their lease until it expires.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnJobFinished registers a callback invoked when a job reaches done or failed
func WithOnJobFinished(fn func(job *Job, status JobStatus, duration time.Duration)) WorkerOption {
	return func(o *workerOptions) {
		o.onFinished = fn
	}
}
