package queue

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/retry"
)

// DispatcherOption is a functional option for configuring a dispatcher
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	clock        clockwork.Clock
	queue        string
	maxRetries   int8
	policy       retry.Policy
	logger       *slog.Logger
	onSubmitted  func(job *Job)
	onSubmitFail func(operation string, err error)
}

// WithDispatcherClock sets the clock used to compute due times
func WithDispatcherClock(clock clockwork.Clock) DispatcherOption {
	return func(o *dispatcherOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithDefaultQueue sets the queue used when a submit does not name one
func WithDefaultQueue(queue string) DispatcherOption {
	return func(o *dispatcherOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithDefaultMaxRetries sets the retry budget for submitted jobs (0-10)
func WithDefaultMaxRetries(maxRetries int8) DispatcherOption {
	return func(o *dispatcherOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}

// WithSubmitPolicy sets the retry policy for broker errors during submit
func WithSubmitPolicy(policy retry.Policy) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.policy = policy
	}
}

// WithDispatcherLogger sets the logger for the dispatcher
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnSubmitted registers a callback invoked after every accepted submit
func WithOnSubmitted(fn func(job *Job)) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.onSubmitted = fn
	}
}

// WithOnSubmitFailed registers a callback invoked when a submit gives up
func WithOnSubmitFailed(fn func(operation string, err error)) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.onSubmitFail = fn
	}
}

// SubmitOption is a functional option for a single submit call
type SubmitOption func(*submitOptions)

type submitOptions struct {
	queue      string
	maxRetries int8
	jobID      uuid.UUID
}

// WithQueue sets the queue for the job
func WithQueue(queue string) SubmitOption {
	return func(o *submitOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithJobID sets the job ID instead of generating a random one.
// A second submit with the same ID fails with ErrJobAlreadyExists.
func WithJobID(id uuid.UUID) SubmitOption {
	return func(o *submitOptions) {
		o.jobID = id
	}
}

// WithMaxRetries sets the max retries for the job (0-10)
// Capped at 10 to prevent infinite retry loops on persistent failures
func WithMaxRetries(maxRetries int8) SubmitOption {
	return func(o *submitOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}
