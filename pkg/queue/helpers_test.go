package queue_test

import (
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/queue"
	"github.com/dmitrymomot/storefront/pkg/retry"
)

var (
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	epoch         = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	fastSubmit    = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
)

type testPayload struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

// rig bundles every component over one memory broker and one fake clock
type rig struct {
	clock      *clockwork.FakeClock
	storage    *queue.MemoryStorage
	dispatcher *queue.Dispatcher
	promoter   *queue.Promoter
	worker     *queue.Worker
}

func newRig(workerOpts ...queue.WorkerOption) *rig {
	clock := clockwork.NewFakeClockAt(epoch)
	storage := queue.NewMemoryStorage(queue.WithMemoryClock(clock))

	dispatcher, err := queue.NewDispatcher(storage,
		queue.WithDispatcherClock(clock),
		queue.WithSubmitPolicy(fastSubmit),
		queue.WithDispatcherLogger(discardLogger))
	if err != nil {
		panic(err)
	}

	promoter, err := queue.NewPromoter(storage,
		queue.WithPromoterClock(clock),
		queue.WithPromoterLogger(discardLogger))
	if err != nil {
		panic(err)
	}

	opts := append([]queue.WorkerOption{
		queue.WithWorkerClock(clock),
		queue.WithWorkerLogger(discardLogger),
	}, workerOpts...)
	worker, err := queue.NewWorker(storage, opts...)
	if err != nil {
		panic(err)
	}

	return &rig{
		clock:      clock,
		storage:    storage,
		dispatcher: dispatcher,
		promoter:   promoter,
		worker:     worker,
	}
}
