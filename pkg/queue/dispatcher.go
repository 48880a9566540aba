package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/retry"
)

// DispatcherRepository defines the interface for job submission and lookup
type DispatcherRepository interface {
	// EnqueueJob stores a pending job and pushes it onto its ready queue
	EnqueueJob(ctx context.Context, job *Job) error

	// ScheduleJob stores a pending job and writes a schedule entry due at job.DueAt
	ScheduleJob(ctx context.Context, job *Job) error

	// GetJob returns the job record. Unknown or expired jobs yield ErrJobNotFound.
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
}

// Dispatcher accepts units of work and hands them to the broker.
// Submission returns as soon as the broker has durably accepted the job;
// execution happens later on a worker.
type Dispatcher struct {
	repo         DispatcherRepository
	clock        clockwork.Clock
	queue        string
	maxRetries   int8
	policy       retry.Policy
	logger       *slog.Logger
	onSubmitted  func(job *Job)
	onSubmitFail func(operation string, err error)
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(repo DispatcherRepository, opts ...DispatcherOption) (*Dispatcher, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &dispatcherOptions{
		clock:  clockwork.NewRealClock(),
		queue:  DefaultQueueName,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Dispatcher{
		repo:         repo,
		clock:        options.clock,
		queue:        options.queue,
		maxRetries:   options.maxRetries,
		policy:       options.policy,
		logger:       options.logger,
		onSubmitted:  options.onSubmitted,
		onSubmitFail: options.onSubmitFail,
	}, nil
}

// Submit validates the mode, serializes the payload and hands the job to the broker.
// Jobs due now (or in the past) go straight to the ready queue; the rest are
// stored as schedule entries and promoted later.
func (d *Dispatcher) Submit(ctx context.Context, operation string, payload any, mode Mode, opts ...SubmitOption) (uuid.UUID, error) {
	if operation == "" {
		return uuid.Nil, ErrOperationEmpty
	}

	submitOpts := &submitOptions{
		queue:      d.queue,
		maxRetries: d.maxRetries,
	}
	for _, opt := range opts {
		opt(submitOpts)
	}

	now := d.clock.Now()
	dueAt, err := mode.DueAt(now)
	if err != nil {
		return uuid.Nil, err
	}

	data, err := marshalPayload(payload)
	if err != nil {
		return uuid.Nil, err
	}

	id := submitOpts.jobID
	if id == uuid.Nil {
		id = uuid.New()
	}

	job := &Job{
		ID:         id,
		Queue:      submitOpts.queue,
		Operation:  operation,
		Payload:    data,
		Mode:       mode.Kind,
		Status:     JobStatusPending,
		MaxRetries: submitOpts.maxRetries,
		DueAt:      dueAt,
		CreatedAt:  now,
	}

	store := d.repo.ScheduleJob
	if !dueAt.After(now) {
		store = d.repo.EnqueueJob
	}

	attempt := 0
	err = retry.DoVoid(ctx, d.policy, classifySubmitError, func(ctx context.Context) error {
		attempt++
		err := store(ctx, job)
		// A previous attempt may have reached the broker before the connection failed.
		if attempt > 1 && errors.Is(err, ErrJobAlreadyExists) {
			return nil
		}
		return err
	})
	if err != nil {
		if d.onSubmitFail != nil {
			d.onSubmitFail(operation, err)
		}
		var (
			exhausted *retry.ExhaustedError
			permanent *retry.PermanentError
		)
		switch {
		case errors.As(err, &exhausted):
			d.logger.ErrorContext(ctx, "dispatch unavailable",
				logger.Operation(operation),
				slog.Int("attempts", exhausted.Attempts),
				logger.Error(exhausted.Err))
			return uuid.Nil, errors.Join(ErrDispatchUnavailable, exhausted.Err)
		case !errors.As(err, &permanent) && ctx.Err() != nil:
			// ctx ended while waiting between attempts against a failing broker
			d.logger.WarnContext(ctx, "dispatch abandoned",
				logger.Operation(operation),
				slog.Int("attempts", attempt),
				logger.Error(err))
			return uuid.Nil, errors.Join(ErrDispatchUnavailable, err)
		}
		return uuid.Nil, fmt.Errorf("failed to submit job: %w", err)
	}

	d.logger.DebugContext(ctx, "job submitted",
		logger.JobID(job.ID),
		logger.Operation(operation),
		slog.String("mode", mode.String()),
		slog.Time("due_at", dueAt))

	if d.onSubmitted != nil {
		d.onSubmitted(job)
	}

	return job.ID, nil
}

// SubmitNow submits a job for immediate execution
func (d *Dispatcher) SubmitNow(ctx context.Context, operation string, payload any, opts ...SubmitOption) (uuid.UUID, error) {
	return d.Submit(ctx, operation, payload, Immediate(), opts...)
}

// SubmitAfter submits a job that becomes runnable after delay
func (d *Dispatcher) SubmitAfter(ctx context.Context, operation string, payload any, delay time.Duration, opts ...SubmitOption) (uuid.UUID, error) {
	return d.Submit(ctx, operation, payload, Delay(delay), opts...)
}

// SubmitAt submits a job that becomes runnable at t
func (d *Dispatcher) SubmitAt(ctx context.Context, operation string, payload any, t time.Time, opts ...SubmitOption) (uuid.UUID, error) {
	return d.Submit(ctx, operation, payload, At(t), opts...)
}

// Enqueue submits a typed payload. The operation name is derived from the
// payload type, matching handlers built with NewTaskHandler.
func (d *Dispatcher) Enqueue(ctx context.Context, payload any, mode Mode, opts ...SubmitOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}
	return d.Submit(ctx, qualifiedStructName(payload), payload, mode, opts...)
}

// Status returns the current record of a job
func (d *Dispatcher) Status(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := d.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func marshalPayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(ErrPayloadMarshal, err)
	}
	return data, nil
}

func classifySubmitError(err error) retry.Action {
	if errors.Is(err, ErrJobAlreadyExists) || errors.Is(err, ErrInvalidSchedule) {
		return retry.Stop
	}
	return retry.AlwaysRetry(err)
}
