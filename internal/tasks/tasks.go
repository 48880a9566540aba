// Package tasks holds the background operations the service ships with.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/queue"
)

const (
	// OperationMessage sleeps, then logs the submitted message.
	OperationMessage = "tasks.message"

	// PeriodicMessage is the operation name of the recurring message task.
	PeriodicMessage = "run-me-background-task"
)

// MessagePayload is the payload of OperationMessage and PeriodicMessage jobs.
type MessagePayload struct {
	Message string `json:"message"`
}

// Messages executes message jobs.
type Messages struct {
	delay time.Duration
	clock clockwork.Clock
	log   *slog.Logger
}

type Option func(*Messages)

func WithClock(clock clockwork.Clock) Option {
	return func(m *Messages) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Messages) {
		if log != nil {
			m.log = log
		}
	}
}

// NewMessages returns a message executor that waits delay before logging.
func NewMessages(delay time.Duration, opts ...Option) *Messages {
	m := &Messages{
		delay: delay,
		clock: clockwork.NewRealClock(),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handlers returns one handler per operation name that runs the message task.
func (m *Messages) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewHandler(OperationMessage, m.Handle),
		queue.NewHandler(PeriodicMessage, m.Handle),
	}
}

// Handle waits for the configured delay and logs the message.
// It stops early when ctx is done.
func (m *Messages) Handle(ctx context.Context, p MessagePayload) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.delay):
		}
	}

	m.log.InfoContext(ctx, "background task message",
		logger.Component("tasks"),
		slog.String("message", p.Message))
	return nil
}

// RegisterPeriodic adds the recurring message task to the scheduler. Runs
// are submitted to queueName, which must be one the workers consume.
func RegisterPeriodic(s *queue.Scheduler, every time.Duration, message, queueName string) error {
	return s.AddTask(PeriodicMessage, queue.EveryInterval(every),
		queue.WithTaskQueue(queueName),
		queue.WithTaskPayload(MessagePayload{Message: message}))
}
