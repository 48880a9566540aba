// Package queue implements a deferred job dispatcher with three timing modes:
// run now, run after a delay and run at an absolute time.
//
// The package is organised around four components that talk to a broker only
// through small repository interfaces:
//
//   - Dispatcher submits jobs. Jobs due now go straight to a ready queue;
//     the rest become schedule entries.
//   - Promoter moves due schedule entries to the ready queues and returns
//     jobs whose worker lease expired.
//   - Worker claims ready jobs, runs the registered Handler and records the
//     outcome (done or failed).
//   - Scheduler submits periodic jobs from a Schedule, one pending run at a time.
//
// Storage is the union of the repository interfaces. MemoryStorage implements it
// in process; the redisstore and pgstore subpackages implement it over Redis and
// PostgreSQL.
//
// # Delivery guarantees
//
// Removing a schedule entry is the promotion claim, and moving the job record
// from pending to running is the execution claim. Together they make every
// job run at most once per lease, even with several promoters and workers
// racing. A worker that dies mid-job loses its lease after the lock timeout and
// the job is handed to another worker; live workers renew the lease every half
// lock timeout.
//
// Finished jobs stay readable through Dispatcher.Status for the result
// retention window (24h by default). Pending jobs never expire.
//
// # Usage
//
//	storage := queue.NewMemoryStorage()
//
//	dispatcher, _ := queue.NewDispatcher(storage)
//	id, err := dispatcher.SubmitAfter(ctx, "emails.welcome", WelcomeEmail{UserID: 42}, 5*time.Minute)
//	if errors.Is(err, queue.ErrDispatchUnavailable) {
//		// broker unreachable after retries
//	}
//
//	worker, _ := queue.NewWorker(storage, queue.WithMaxConcurrentTasks(10))
//	worker.RegisterHandler(queue.NewHandler("emails.welcome", sendWelcome))
//
//	promoter, _ := queue.NewPromoter(storage)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(worker.Run(ctx))
//	g.Go(promoter.Run(ctx))
//	_ = g.Wait()
//
// Periodic jobs:
//
//	scheduler, _ := queue.NewScheduler(dispatcher, storage)
//	scheduler.AddTask("reports.daily", queue.DailyAt(6, 0))
//	scheduler.AddTask("cache.warm", queue.MustCron("*/15 * * * *"))
//	g.Go(scheduler.Run(ctx))
//
// # Configuration
//
// Config carries env-tagged settings (QUEUE_POLL_INTERVAL, QUEUE_LOCK_TIMEOUT,
// QUEUE_RESULT_TTL and friends) for use with the config package.
package queue
