package queue_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/queue"
)

// Example_delayedJob submits a delayed job and drives the promoter and worker by hand
func Example_delayedJob() {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	storage := queue.NewMemoryStorage(queue.WithMemoryClock(clock))

	dispatcher, _ := queue.NewDispatcher(storage,
		queue.WithDispatcherClock(clock),
		queue.WithDispatcherLogger(discardLogger))
	promoter, _ := queue.NewPromoter(storage,
		queue.WithPromoterClock(clock),
		queue.WithPromoterLogger(discardLogger))
	worker, _ := queue.NewWorker(storage,
		queue.WithWorkerClock(clock),
		queue.WithWorkerLogger(discardLogger))

	type WelcomeEmail struct {
		To string `json:"to"`
	}

	_ = worker.RegisterHandler(queue.NewTaskHandler(func(_ context.Context, e WelcomeEmail) error {
		fmt.Println("sending welcome email to", e.To)
		return nil
	}))

	id, _ := dispatcher.Enqueue(ctx, WelcomeEmail{To: "user@example.com"}, queue.Delay(5*time.Second))

	job, _ := dispatcher.Status(ctx, id)
	fmt.Println("after submit:", job.Status)

	clock.Advance(5 * time.Second)
	_, _, _ = promoter.Tick(ctx)
	_, _ = worker.ProcessNext(ctx)

	job, _ = dispatcher.Status(ctx, id)
	fmt.Println("after 5s:", job.Status)

	// Output:
	// after submit: pending
	// sending welcome email to user@example.com
	// after 5s: done
}

// ExampleCron builds a schedule from a cron expression
func ExampleCron() {
	schedule, err := queue.Cron("0 9 * * MON-FRI")
	if err != nil {
		panic(err)
	}

	from := time.Date(2024, time.March, 16, 12, 0, 0, 0, time.UTC) // Saturday
	fmt.Println(schedule.Next(from).Format(time.RFC1123))

	// Output:
	// Mon, 18 Mar 2024 09:00:00 UTC
}
