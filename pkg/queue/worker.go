package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimJob atomically moves the next ready job from pending to running and
	// locks it for workerID until now+lockDuration. Returns ErrNoJobToClaim when
	// every queue is empty.
	ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, now time.Time, lockDuration time.Duration) (*Job, error)

	// CompleteJob marks a running job as done
	CompleteJob(ctx context.Context, jobID, workerID uuid.UUID, now time.Time) error

	// FailJob marks a running job as failed with the error text
	FailJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, now time.Time) error

	// RetryJob returns a running job to pending, increments its retry count and
	// schedules it at dueAt
	RetryJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, dueAt time.Time) error

	// ExtendLock moves the lock deadline of a running job to until
	ExtendLock(ctx context.Context, jobID, workerID uuid.UUID, until time.Time) error
}

// Worker processes jobs from the ready queues
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	// Configuration
	clock           clockwork.Clock
	pullInterval    time.Duration
	lockTimeout     time.Duration
	retryBackoff    time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	onFinished      func(job *Job, status JobStatus, duration time.Duration)

	// State management
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new job worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		clock:              clockwork.NewRealClock(),
		queues:             []string{DefaultQueueName},
		pullInterval:       time.Second,
		lockTimeout:        5 * time.Minute,
		retryBackoff:       10 * time.Second,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:            repo,
		handlers:        make(map[string]Handler),
		queues:          options.queues,
		workerID:        uuid.New(),
		sem:             make(chan struct{}, options.maxConcurrentTasks),
		clock:           options.clock,
		pullInterval:    options.pullInterval,
		lockTimeout:     options.lockTimeout,
		retryBackoff:    options.retryBackoff,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
		onFinished:      options.onFinished,
	}, nil
}

// RegisterHandler registers a single job handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple job handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing jobs in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker %w", ErrAlreadyStarted)
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()

	w.logger.Info("worker started",
		logger.WorkerID(w.workerID),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker. In-flight jobs run to completion.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker %w", ErrNotStarted)
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active jobs to complete",
		logger.WorkerID(w.workerID))

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	if w.shutdownTimeout > 0 {
		select {
		case <-done:
		case <-time.After(w.shutdownTimeout):
			w.logger.Warn("worker shutdown timed out, abandoning active jobs",
				logger.WorkerID(w.workerID),
				slog.Duration("timeout", w.shutdownTimeout))
			return fmt.Errorf("worker %w", ErrShutdownTimeout)
		}
	} else {
		<-done
	}

	w.logger.Info("worker stopped",
		logger.WorkerID(w.workerID))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// ProcessNext claims a single job and executes it on the calling goroutine.
// It reports false when no job was ready.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimJob(ctx, w.workerID, w.queues, w.clock.Now(), w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	return true, w.processJob(ctx, job)
}

// run is the main processing loop
func (w *Worker) run() {
	ticker := w.clock.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.Chan():
			w.fillSlots()
		}
	}
}

// fillSlots claims jobs until every slot is busy or the queues are drained
func (w *Worker) fillSlots() {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			w.logger.Debug("all worker slots busy, skipping tick",
				logger.WorkerID(w.workerID))
			return
		}

		job, err := w.repo.ClaimJob(w.ctx, w.workerID, w.queues, w.clock.Now(), w.lockTimeout)
		if err != nil {
			<-w.sem
			if !errors.Is(err, ErrNoJobToClaim) && w.ctx.Err() == nil {
				w.logger.Error("failed to claim job",
					logger.WorkerID(w.workerID),
					logger.Error(err))
			}
			return
		}

		// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
		w.stopMu.Lock()
		if w.stopping.Load() {
			w.stopMu.Unlock()
			<-w.sem
			// The lease expires and the promoter hands the job to another worker.
			return
		}
		w.wg.Add(1)
		w.stopMu.Unlock()

		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()

			if err := w.processJob(w.ctx, job); err != nil {
				w.logger.Error("failed to process job",
					logger.WorkerID(w.workerID),
					logger.JobID(job.ID),
					logger.Error(err))
			}
		}()
	}
}

// processJob executes a claimed job with its handler and records the outcome.
// Handler errors never escape: they become the job's failure record.
func (w *Worker) processJob(ctx context.Context, job *Job) (retErr error) {
	start := w.clock.Now()

	// Outcome writes must survive worker shutdown.
	ctx = context.WithoutCancel(ctx)

	w.logger.Debug("claimed job",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.Operation(job.Operation),
		logger.Queue(job.Queue))

	w.mu.RLock()
	handler, ok := w.handlers[job.Operation]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(ctx, job)
	}

	execErr := w.execute(ctx, handler, job)
	duration := w.clock.Since(start)

	if execErr != nil {
		return w.handleJobFailure(ctx, job, execErr, duration)
	}

	return w.handleJobSuccess(ctx, job, duration)
}

// execute runs the handler with panic recovery while renewing the job lease.
// The handler context carries no deadline and is not tied to the worker lifecycle.
func (w *Worker) execute(ctx context.Context, handler Handler, job *Job) (err error) {
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		w.renewLease(hctx, job)
	}()
	defer func() {
		cancel()
		<-renewDone
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				logger.WorkerID(w.workerID),
				logger.JobID(job.ID),
				logger.Operation(job.Operation),
				slog.Any("panic", r))
		}
	}()

	return handler.Handle(hctx, job.Payload)
}

// renewLease extends the job lock every half lock timeout until ctx is done
func (w *Worker) renewLease(ctx context.Context, job *Job) {
	ticker := w.clock.NewTicker(w.lockTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			until := w.clock.Now().Add(w.lockTimeout)
			if err := w.repo.ExtendLock(ctx, job.ID, w.workerID, until); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("failed to extend job lock",
					logger.WorkerID(w.workerID),
					logger.JobID(job.ID),
					logger.Error(err))
				if errors.Is(err, ErrJobNotClaimed) {
					return
				}
			}
		}
	}
}

// handleMissingHandler fails jobs that have no registered handler.
// Retrying cannot help until a handler is deployed.
func (w *Worker) handleMissingHandler(ctx context.Context, job *Job) error {
	w.logger.Error("no handler registered for operation",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.Operation(job.Operation))

	errorMsg := "no handler registered for operation: " + job.Operation
	if err := w.repo.FailJob(ctx, job.ID, w.workerID, errorMsg, w.clock.Now()); err != nil {
		return w.outcomeError(job, "failed", err)
	}

	w.finished(job, JobStatusFailed, 0)
	return nil
}

// handleJobFailure retries the job with linear backoff while its retry
// budget lasts, then records the final failure.
func (w *Worker) handleJobFailure(ctx context.Context, job *Job, execErr error, duration time.Duration) error {
	w.logger.Error("job failed",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.Operation(job.Operation),
		logger.RetryCount(int(job.RetryCount)),
		slog.Int("max_retries", int(job.MaxRetries)),
		slog.Duration("duration", duration),
		logger.Error(execErr))

	if job.RetryCount < job.MaxRetries {
		dueAt := w.clock.Now().Add(w.retryBackoff * time.Duration(job.RetryCount+1))
		if err := w.repo.RetryJob(ctx, job.ID, w.workerID, execErr.Error(), dueAt); err != nil {
			return w.outcomeError(job, "retried", err)
		}
		w.logger.Info("job scheduled for retry",
			logger.JobID(job.ID),
			slog.Time("due_at", dueAt))
		return nil
	}

	if err := w.repo.FailJob(ctx, job.ID, w.workerID, execErr.Error(), w.clock.Now()); err != nil {
		return w.outcomeError(job, "failed", err)
	}

	w.finished(job, JobStatusFailed, duration)
	return nil
}

// handleJobSuccess processes successful job completion
func (w *Worker) handleJobSuccess(ctx context.Context, job *Job, duration time.Duration) error {
	if err := w.repo.CompleteJob(ctx, job.ID, w.workerID, w.clock.Now()); err != nil {
		return w.outcomeError(job, "done", err)
	}

	w.logger.Info("job completed successfully",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.Operation(job.Operation),
		logger.Queue(job.Queue),
		slog.Duration("duration", duration))

	w.finished(job, JobStatusDone, duration)
	return nil
}

// outcomeError tolerates a lost lease: the job now belongs to another worker.
func (w *Worker) outcomeError(job *Job, outcome string, err error) error {
	if errors.Is(err, ErrJobNotClaimed) {
		w.logger.Warn("job lease lost before recording outcome",
			logger.WorkerID(w.workerID),
			logger.JobID(job.ID),
			slog.String("outcome", outcome))
		return nil
	}
	return fmt.Errorf("failed to mark job %s as %s: %w", job.ID, outcome, err)
}

func (w *Worker) finished(job *Job, status JobStatus, duration time.Duration) {
	if w.onFinished != nil {
		w.onFinished(job, status, duration)
	}
}

// WorkerInfo returns information about the worker
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}
