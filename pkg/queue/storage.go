package queue

import (
	"context"
	"time"
)

// Storage is the full broker contract: every role interface the dispatcher,
// promoter, worker and scheduler depend on. MemoryStorage, redisstore.Storage
// and pgstore.Storage implement it.
type Storage interface {
	DispatcherRepository
	PromoterRepository
	WorkerRepository
	SchedulerRepository
}

// Purger is implemented by brokers that cannot expire finished jobs natively.
// The promoter calls it on every tick when available.
type Purger interface {
	// PurgeExpired deletes finished jobs whose retention window elapsed
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
