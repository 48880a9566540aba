package queue

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultResultTTL is how long finished jobs stay readable through Status
const DefaultResultTTL = 24 * time.Hour

// MemoryStorage implements Storage in process memory.
// It mirrors the broker model of the networked stores: a job record per id,
// a FIFO ready list per queue and a schedule set keyed by job id.
type MemoryStorage struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	resultTTL time.Duration

	jobs     map[uuid.UUID]*Job
	ready    map[string][]uuid.UUID
	schedule map[uuid.UUID]time.Time
}

// MemoryStorageOption configures a MemoryStorage
type MemoryStorageOption func(*MemoryStorage)

// WithMemoryClock sets the clock used for result retention checks
func WithMemoryClock(clock clockwork.Clock) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if clock != nil {
			ms.clock = clock
		}
	}
}

// WithMemoryResultTTL sets how long finished jobs remain visible
func WithMemoryResultTTL(ttl time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if ttl > 0 {
			ms.resultTTL = ttl
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		clock:     clockwork.NewRealClock(),
		resultTTL: DefaultResultTTL,
		jobs:      make(map[uuid.UUID]*Job),
		ready:     make(map[string][]uuid.UUID),
		schedule:  make(map[uuid.UUID]time.Time),
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// EnqueueJob implements DispatcherRepository
func (ms *MemoryStorage) EnqueueJob(ctx context.Context, job *Job) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.insert(job); err != nil {
		return err
	}
	ms.ready[job.Queue] = append(ms.ready[job.Queue], job.ID)
	return nil
}

// ScheduleJob implements DispatcherRepository
func (ms *MemoryStorage) ScheduleJob(ctx context.Context, job *Job) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.insert(job); err != nil {
		return err
	}
	ms.schedule[job.ID] = job.DueAt
	return nil
}

func (ms *MemoryStorage) insert(job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if _, exists := ms.jobs[job.ID]; exists {
		return ErrJobAlreadyExists
	}
	ms.jobs[job.ID] = job.Clone()
	return nil
}

// GetJob implements DispatcherRepository
func (ms *MemoryStorage) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[id]
	if !ok || ms.expired(job, ms.clock.Now()) {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

func (ms *MemoryStorage) expired(job *Job, now time.Time) bool {
	return job.Status.Finished() && job.FinishedAt != nil && !job.FinishedAt.Add(ms.resultTTL).After(now)
}

// PromoteDue implements PromoterRepository
func (ms *MemoryStorage) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	due := make([]uuid.UUID, 0)
	for id, at := range ms.schedule {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	slices.SortFunc(due, func(a, b uuid.UUID) int {
		return ms.schedule[a].Compare(ms.schedule[b])
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	promoted := 0
	for _, id := range due {
		delete(ms.schedule, id)
		job, ok := ms.jobs[id]
		if !ok || job.Status != JobStatusPending {
			continue
		}
		ms.ready[job.Queue] = append(ms.ready[job.Queue], id)
		promoted++
	}
	return promoted, nil
}

// RequeueExpired implements PromoterRepository
func (ms *MemoryStorage) RequeueExpired(ctx context.Context, now time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	requeued := 0
	for id, job := range ms.jobs {
		if job.Status != JobStatusRunning || job.LockedUntil == nil || job.LockedUntil.After(now) {
			continue
		}
		job.Status = JobStatusPending
		job.LockedBy = nil
		job.LockedUntil = nil
		ms.ready[job.Queue] = append(ms.ready[job.Queue], id)
		requeued++
	}
	return requeued, nil
}

// PurgeExpired implements Purger
func (ms *MemoryStorage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	purged := 0
	for id, job := range ms.jobs {
		if ms.expired(job, now) {
			delete(ms.jobs, id)
			purged++
		}
	}
	return purged, nil
}

// ClaimJob implements WorkerRepository
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, now time.Time, lockDuration time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, q := range queues {
		for len(ms.ready[q]) > 0 {
			id := ms.ready[q][0]
			ms.ready[q] = ms.ready[q][1:]

			job, ok := ms.jobs[id]
			// Stale entries from a duplicate push are dropped.
			if !ok || job.Status != JobStatusPending {
				continue
			}

			lockedUntil := now.Add(lockDuration)
			started := now
			owner := workerID
			job.Status = JobStatusRunning
			job.StartedAt = &started
			job.LockedBy = &owner
			job.LockedUntil = &lockedUntil

			return job.Clone(), nil
		}
	}
	return nil, ErrNoJobToClaim
}

// CompleteJob implements WorkerRepository
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID, workerID uuid.UUID, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.owned(jobID, workerID)
	if err != nil {
		return err
	}
	finished := now
	job.Status = JobStatusDone
	job.FinishedAt = &finished
	job.LockedBy = nil
	job.LockedUntil = nil
	return nil
}

// FailJob implements WorkerRepository
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.owned(jobID, workerID)
	if err != nil {
		return err
	}
	finished := now
	job.Status = JobStatusFailed
	job.FinishedAt = &finished
	job.Error = &errorMsg
	job.LockedBy = nil
	job.LockedUntil = nil
	return nil
}

// RetryJob implements WorkerRepository
func (ms *MemoryStorage) RetryJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, dueAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.owned(jobID, workerID)
	if err != nil {
		return err
	}
	job.Status = JobStatusPending
	job.RetryCount++
	job.Error = &errorMsg
	job.DueAt = dueAt
	job.LockedBy = nil
	job.LockedUntil = nil
	ms.schedule[jobID] = dueAt
	return nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(ctx context.Context, jobID, workerID uuid.UUID, until time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.owned(jobID, workerID)
	if err != nil {
		return err
	}
	job.LockedUntil = &until
	return nil
}

func (ms *MemoryStorage) owned(jobID, workerID uuid.UUID) (*Job, error) {
	job, ok := ms.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if !job.ClaimedBy(workerID) {
		return nil, ErrJobNotClaimed
	}
	return job, nil
}

// GetPendingJobByOperation implements SchedulerRepository
func (ms *MemoryStorage) GetPendingJobByOperation(ctx context.Context, operation string) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, job := range ms.jobs {
		if job.Operation == operation && job.Status == JobStatusPending {
			return job.Clone(), nil
		}
	}
	return nil, ErrJobNotFound
}

// Stats returns the number of ready entries per queue and pending schedule entries.
func (ms *MemoryStorage) Stats() (ready map[string]int, scheduled int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ready = make(map[string]int, len(ms.ready))
	for q, ids := range ms.ready {
		ready[q] = len(ids)
	}
	return ready, len(ms.schedule)
}

// Jobs returns a snapshot of every stored job, oldest first.
func (ms *MemoryStorage) Jobs() []*Job {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	jobs := make([]*Job, 0, len(ms.jobs))
	for _, job := range ms.jobs {
		jobs = append(jobs, job.Clone())
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs
}
