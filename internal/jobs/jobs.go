// Package jobs assembles the queue components from configuration and runs
// the background side: promotion, execution and periodic scheduling.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/storefront/internal/config"
	"github.com/dmitrymomot/storefront/internal/metrics"
	"github.com/dmitrymomot/storefront/internal/tasks"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/queue"
	"github.com/dmitrymomot/storefront/pkg/retry"
)

// NewDispatcher builds the producer side used by the HTTP server and the scheduler.
func NewDispatcher(storage queue.DispatcherRepository, cfg queue.Config, log *slog.Logger) (*queue.Dispatcher, error) {
	opts := []queue.DispatcherOption{
		queue.WithDefaultMaxRetries(cfg.MaxRetries),
		queue.WithSubmitPolicy(retry.Policy{
			MaxAttempts:    cfg.SubmitAttempts,
			InitialBackoff: cfg.SubmitBackoff,
			MaxBackoff:     cfg.SubmitBackoff * 8,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				log.Warn("submit failed, retrying",
					slog.Int("attempt", attempt),
					slog.Duration("backoff", backoff),
					logger.Error(err))
			},
		}),
		queue.WithDispatcherLogger(log.With(logger.Component("dispatcher"))),
		queue.WithOnSubmitted(metrics.ObserveSubmitted),
		queue.WithOnSubmitFailed(metrics.ObserveSubmitFailed),
	}
	if len(cfg.Queues) > 0 {
		opts = append(opts, queue.WithDefaultQueue(cfg.Queues[0]))
	}
	return queue.NewDispatcher(storage, opts...)
}

// Runtime is the consumer side of the queue
type Runtime struct {
	Promoter  *queue.Promoter
	Worker    *queue.Worker
	Scheduler *queue.Scheduler
}

// NewRuntime wires the promoter, a worker with the built-in task handlers and
// the scheduler with the periodic message task.
func NewRuntime(storage queue.Storage, dispatcher *queue.Dispatcher, cfg config.Config, log *slog.Logger) (*Runtime, error) {
	promoter, err := queue.NewPromoter(storage,
		queue.WithPromoteInterval(cfg.Queue.PromoteInterval),
		queue.WithPromoteBatchSize(cfg.Queue.PromoteBatchSize),
		queue.WithPromoterLogger(log.With(logger.Component("promoter"))),
		queue.WithOnPromoted(metrics.ObservePromoted),
		queue.WithOnRequeued(metrics.ObserveRequeued))
	if err != nil {
		return nil, err
	}

	worker, err := queue.NewWorker(storage,
		queue.WithQueues(cfg.Queue.Queues...),
		queue.WithPullInterval(cfg.Queue.PollInterval),
		queue.WithLockTimeout(cfg.Queue.LockTimeout),
		queue.WithMaxConcurrentTasks(cfg.Queue.MaxConcurrentTasks),
		queue.WithShutdownTimeout(cfg.Queue.ShutdownTimeout),
		queue.WithWorkerLogger(log.With(logger.Component("worker"))),
		queue.WithOnJobFinished(metrics.ObserveJobFinished))
	if err != nil {
		return nil, err
	}

	messages := tasks.NewMessages(cfg.App.MessageTaskDelay, tasks.WithLogger(log))
	if err := worker.RegisterHandlers(messages.Handlers()...); err != nil {
		return nil, err
	}

	scheduler, err := queue.NewScheduler(dispatcher, storage,
		queue.WithSchedulerLogger(log.With(logger.Component("scheduler"))))
	if err != nil {
		return nil, err
	}
	if err := tasks.RegisterPeriodic(scheduler, cfg.App.PeriodicEvery, cfg.App.PeriodicMessage, periodicQueue(cfg.Queue)); err != nil {
		return nil, err
	}

	return &Runtime{Promoter: promoter, Worker: worker, Scheduler: scheduler}, nil
}

// periodicQueue is the first queue the workers consume
func periodicQueue(cfg queue.Config) string {
	if len(cfg.Queues) > 0 {
		return cfg.Queues[0]
	}
	return queue.DefaultQueueName
}

// Run blocks until ctx is done or a component fails, then stops the rest.
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(r.Promoter.Run(ctx))
	g.Go(r.Worker.Run(ctx))
	g.Go(r.Scheduler.Run(ctx))
	return g.Wait()
}
