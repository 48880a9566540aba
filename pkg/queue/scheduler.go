package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

// SchedulerRepository defines the interface for scheduler operations
type SchedulerRepository interface {
	// GetPendingJobByOperation returns a pending job for the operation or ErrJobNotFound
	GetPendingJobByOperation(ctx context.Context, operation string) (*Job, error)
}

// Scheduler submits periodic jobs through the dispatcher.
// Each registered task has at most one pending job at a time. Every run gets a
// job ID derived from the task name and its slot, so schedulers on several
// replicas that race for the same slot submit it once.
type Scheduler struct {
	dispatcher *Dispatcher
	repo       SchedulerRepository
	tasks      map[string]*scheduledTask
	mu         sync.RWMutex
	clock      clockwork.Clock
	interval   time.Duration
	logger     *slog.Logger
}

// scheduledTask holds configuration for a periodic task
type scheduledTask struct {
	name            string
	schedule        Schedule
	queue           string
	payload         any
	maxRetries      int8
	lastScheduledAt *time.Time // Track when we last submitted a job
}

// NewScheduler creates a new periodic task scheduler
func NewScheduler(dispatcher *Dispatcher, repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if dispatcher == nil {
		return nil, ErrDispatcherNil
	}
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		clock:         clockwork.NewRealClock(),
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		dispatcher: dispatcher,
		repo:       repo,
		tasks:      make(map[string]*scheduledTask),
		clock:      options.clock,
		interval:   options.checkInterval,
		logger:     options.logger,
	}, nil
}

// AddTask registers a periodic task. The name is the operation the
// submitted jobs carry, so a handler with the same name must be registered
// on the workers.
func (s *Scheduler) AddTask(name string, schedule Schedule, opts ...SchedulerTaskOption) error {
	if name == "" {
		return ErrOperationEmpty
	}

	taskOpts := &schedulerTaskOptions{
		queue: DefaultQueueName,
	}

	for _, opt := range opts {
		opt(taskOpts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return ErrTaskAlreadyRegistered
	}

	s.tasks[name] = &scheduledTask{
		name:       name,
		schedule:   schedule,
		queue:      taskOpts.queue,
		payload:    taskOpts.payload,
		maxRetries: taskOpts.maxRetries,
	}

	s.logger.Info("registered periodic task",
		slog.String("task_name", name),
		slog.String("schedule", schedule.String()))

	return nil
}

// Start begins the scheduler's periodic task checking
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	taskCount := len(s.tasks)
	s.mu.RUnlock()

	if taskCount == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	// Check immediately on start
	s.CheckTasks(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.Chan():
			s.CheckTasks(ctx)
		}
	}
}

// Run returns a function suitable for errgroup
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

// CheckTasks submits a job for every registered task that is due
func (s *Scheduler) CheckTasks(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*scheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.RUnlock()

	now := s.clock.Now()

	for _, task := range tasks {
		if err := s.scheduleTaskIfNeeded(ctx, task, now); err != nil {
			s.logger.Error("failed to schedule task",
				slog.String("task_name", task.name),
				logger.Error(err))
		}
	}
}

// scheduleTaskIfNeeded submits the next run of a task unless one is already pending
func (s *Scheduler) scheduleTaskIfNeeded(ctx context.Context, task *scheduledTask, now time.Time) error {
	nextRun := s.calculateNextRun(task, now)

	if !s.shouldScheduleTask(task, nextRun, now) {
		return nil
	}

	existing, err := s.repo.GetPendingJobByOperation(ctx, task.name)
	switch {
	case err == nil && existing != nil:
		s.updateTaskState(task.name, &existing.DueAt)
		s.logger.Debug("periodic task already pending",
			slog.String("task_name", task.name),
			slog.Time("scheduled_for", existing.DueAt))
		return nil
	case err != nil && !errors.Is(err, ErrJobNotFound):
		return fmt.Errorf("failed to look up pending job: %w", err)
	}

	id := periodicJobID(task.name, nextRun)

	// A run whose slot passed while nothing was pending executes right away.
	if nextRun.Before(now) {
		nextRun = now
	}

	_, err = s.dispatcher.Submit(ctx, task.name, task.payload, At(nextRun),
		WithQueue(task.queue), WithMaxRetries(task.maxRetries), WithJobID(id))
	if errors.Is(err, ErrJobAlreadyExists) {
		// another scheduler submitted this slot first
		dueAt := nextRun
		if job, err := s.dispatcher.Status(ctx, id); err == nil {
			dueAt = job.DueAt
		}
		s.updateTaskState(task.name, &dueAt)
		s.logger.Debug("periodic slot already submitted",
			slog.String("task_name", task.name),
			logger.JobID(id),
			slog.Time("scheduled_for", dueAt))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to submit periodic job: %w", err)
	}

	first := task.lastScheduledAt == nil
	s.updateTaskState(task.name, &nextRun)

	if first {
		s.logger.Info("created periodic task (first run)",
			slog.String("task_name", task.name),
			slog.Time("scheduled_for", nextRun))
	} else {
		s.logger.Info("created periodic task",
			slog.String("task_name", task.name),
			slog.Time("scheduled_for", nextRun))
	}

	return nil
}

// periodicJobID names one run of a task. The same task and slot always map to
// the same ID.
func periodicJobID(name string, slot time.Time) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name+"@"+slot.UTC().Format(time.RFC3339Nano)))
}

// calculateNextRun determines when the task should run next
func (s *Scheduler) calculateNextRun(task *scheduledTask, now time.Time) time.Time {
	s.mu.RLock()
	last := task.lastScheduledAt
	s.mu.RUnlock()

	if last == nil {
		return task.schedule.Next(now)
	}
	return task.schedule.Next(*last)
}

// shouldScheduleTask determines if a task is due to be scheduled.
// The next run is submitted once the previous one became due, so there is
// always exactly one job waiting in the broker.
func (s *Scheduler) shouldScheduleTask(task *scheduledTask, nextRun, now time.Time) bool {
	s.mu.RLock()
	last := task.lastScheduledAt
	s.mu.RUnlock()

	if last == nil {
		return true
	}

	if last.After(now) {
		s.logger.Debug("periodic task not due yet",
			slog.String("task_name", task.name),
			slog.Time("next_run", nextRun))
		return false
	}

	return true
}

// updateTaskState updates the lastScheduledAt time for a task
func (s *Scheduler) updateTaskState(taskName string, scheduledAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[taskName]; ok {
		t.lastScheduledAt = scheduledAt
	}
}

// RemoveTask removes a periodic task from the scheduler
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, name)

	s.logger.Info("removed periodic task",
		slog.String("task_name", name))
}

// ListTasks returns all registered periodic tasks
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}
