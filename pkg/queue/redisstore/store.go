package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/storefront/pkg/queue"
)

var (
	_ queue.Storage = (*Storage)(nil)

	// ErrClientNil is returned when New receives a nil client
	ErrClientNil = errors.New("redisstore: client cannot be nil")
)

// Storage is a Redis implementation of queue.Storage
type Storage struct {
	client    goredis.UniversalClient
	prefix    string
	resultTTL time.Duration
}

// Option configures the Storage
type Option func(*Storage)

// WithPrefix sets the key prefix. Wrap it in braces to keep every key in one cluster slot.
func WithPrefix(prefix string) Option {
	return func(s *Storage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithResultTTL sets how long finished jobs stay readable
func WithResultTTL(ttl time.Duration) Option {
	return func(s *Storage) {
		if ttl > 0 {
			s.resultTTL = ttl
		}
	}
}

// WithConfig applies every field of cfg
func WithConfig(cfg Config) Option {
	return func(s *Storage) {
		WithPrefix(cfg.Prefix)(s)
		WithResultTTL(cfg.ResultTTL)(s)
	}
}

// New creates a Redis-backed queue storage
func New(client goredis.UniversalClient, opts ...Option) (*Storage, error) {
	if client == nil {
		return nil, ErrClientNil
	}

	s := &Storage{
		client:    client,
		prefix:    "{queue}",
		resultTTL: queue.DefaultResultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnqueueJob implements queue.DispatcherRepository
func (s *Storage) EnqueueJob(ctx context.Context, job *queue.Job) error {
	return s.insert(ctx, job, s.readyKey(job.Queue), "")
}

// ScheduleJob implements queue.DispatcherRepository
func (s *Storage) ScheduleJob(ctx context.Context, job *queue.Job) error {
	return s.insert(ctx, job, s.scheduleKey(), unixMilli(job.DueAt))
}

func (s *Storage) insert(ctx context.Context, job *queue.Job, target, dueMs string) error {
	if job == nil {
		return errors.New("redisstore: job cannot be nil")
	}

	id := job.ID.String()
	args := append([]any{id, dueMs}, encodeJob(job)...)

	created, err := insertScript.Run(ctx, s.client,
		[]string{s.jobKey(id), target, s.pendingKey(job.Operation)},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("redisstore: insert job: %w", err)
	}
	if created == 0 {
		return queue.ErrJobAlreadyExists
	}
	return nil
}

// GetJob implements queue.DispatcherRepository.
// Expired results are gone from Redis, so they read as ErrJobNotFound.
func (s *Storage) GetJob(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	return s.getJob(ctx, id.String())
}

func (s *Storage) getJob(ctx context.Context, id string) (*queue.Job, error) {
	m, err := s.client.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get job: %w", err)
	}
	if len(m) == 0 {
		return nil, queue.ErrJobNotFound
	}

	job, err := decodeJob(m)
	if err != nil {
		return nil, fmt.Errorf("redisstore: %w", err)
	}
	return job, nil
}

// PromoteDue implements queue.PromoterRepository
func (s *Storage) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	n, err := promoteScript.Run(ctx, s.client,
		[]string{s.scheduleKey()},
		s.prefix, unixMilli(now), limit,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("redisstore: promote due: %w", err)
	}
	return n, nil
}

// RequeueExpired implements queue.PromoterRepository
func (s *Storage) RequeueExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := requeueScript.Run(ctx, s.client,
		[]string{s.inflightKey()},
		s.prefix, unixMilli(now),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("redisstore: requeue expired: %w", err)
	}
	return n, nil
}

// ClaimJob implements queue.WorkerRepository
func (s *Storage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, now time.Time, lockDuration time.Duration) (*queue.Job, error) {
	if len(queues) == 0 {
		return nil, queue.ErrNoJobToClaim
	}

	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = s.readyKey(q)
	}

	lockedUntil := now.Add(lockDuration)
	id, err := claimScript.Run(ctx, s.client, keys,
		s.prefix, workerID.String(), formatTime(now), formatTime(lockedUntil), unixMilli(lockedUntil),
	).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, queue.ErrNoJobToClaim
		}
		return nil, fmt.Errorf("redisstore: claim job: %w", err)
	}

	return s.getJob(ctx, id)
}

// CompleteJob implements queue.WorkerRepository
func (s *Storage) CompleteJob(ctx context.Context, jobID, workerID uuid.UUID, now time.Time) error {
	return s.finish(ctx, jobID, workerID, queue.JobStatusDone, "", now)
}

// FailJob implements queue.WorkerRepository
func (s *Storage) FailJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, now time.Time) error {
	return s.finish(ctx, jobID, workerID, queue.JobStatusFailed, errorMsg, now)
}

func (s *Storage) finish(ctx context.Context, jobID, workerID uuid.UUID, status queue.JobStatus, errorMsg string, now time.Time) error {
	id := jobID.String()
	res, err := finishScript.Run(ctx, s.client,
		[]string{s.jobKey(id), s.inflightKey()},
		workerID.String(), id, string(status), formatTime(now), s.resultTTL.Milliseconds(), errorMsg,
	).Int()
	if err != nil {
		return fmt.Errorf("redisstore: finish job: %w", err)
	}
	return ownerResult(res)
}

// RetryJob implements queue.WorkerRepository
func (s *Storage) RetryJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, dueAt time.Time) error {
	id := jobID.String()
	res, err := retryScript.Run(ctx, s.client,
		[]string{s.jobKey(id), s.inflightKey(), s.scheduleKey()},
		workerID.String(), id, errorMsg, formatTime(dueAt), unixMilli(dueAt), s.prefix,
	).Int()
	if err != nil {
		return fmt.Errorf("redisstore: retry job: %w", err)
	}
	return ownerResult(res)
}

// ExtendLock implements queue.WorkerRepository
func (s *Storage) ExtendLock(ctx context.Context, jobID, workerID uuid.UUID, until time.Time) error {
	id := jobID.String()
	res, err := extendScript.Run(ctx, s.client,
		[]string{s.jobKey(id), s.inflightKey()},
		workerID.String(), id, formatTime(until), unixMilli(until),
	).Int()
	if err != nil {
		return fmt.Errorf("redisstore: extend lock: %w", err)
	}
	return ownerResult(res)
}

func ownerResult(res int) error {
	switch res {
	case -1:
		return queue.ErrJobNotFound
	case 0:
		return queue.ErrJobNotClaimed
	default:
		return nil
	}
}

// GetPendingJobByOperation implements queue.SchedulerRepository
func (s *Storage) GetPendingJobByOperation(ctx context.Context, operation string) (*queue.Job, error) {
	key := s.pendingKey(operation)
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list pending: %w", err)
	}

	for _, id := range ids {
		job, err := s.getJob(ctx, id)
		switch {
		case errors.Is(err, queue.ErrJobNotFound):
			s.client.SRem(ctx, key, id)
			continue
		case err != nil:
			return nil, err
		}
		if job.Status == queue.JobStatusPending {
			return job, nil
		}
	}
	return nil, queue.ErrJobNotFound
}
