package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/pg"
	"github.com/dmitrymomot/storefront/pkg/queue"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the goose files
const MigrationsDir = "migrations"

var (
	_ queue.Storage = (*Storage)(nil)
	_ queue.Purger  = (*Storage)(nil)
)

// Storage is a PostgreSQL implementation of queue.Storage using pgx/v5
type Storage struct {
	pool      *pgxpool.Pool
	clock     clockwork.Clock
	resultTTL time.Duration
}

// Option configures the Storage
type Option func(*Storage)

// WithClock sets the clock used for result retention checks
func WithClock(clock clockwork.Clock) Option {
	return func(s *Storage) {
		if clock != nil {
			s.clock = clock
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

// New creates a Postgres-backed queue storage over an open pool.
// The schema must already be migrated.
func New(pool *pgxpool.Pool, opts ...Option) *Storage {
	s := &Storage{
		pool:      pool,
		clock:     clockwork.NewRealClock(),
		resultTTL: queue.DefaultResultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const jobColumns = `id, queue, operation, payload, mode, status, retry_count, max_retries,
	due_at, locked_by, locked_until, started_at, finished_at, error, created_at`

// EnqueueJob implements queue.DispatcherRepository
func (s *Storage) EnqueueJob(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return errors.New("pgstore: job cannot be nil")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_jobs (
			id, queue, operation, payload, mode, status, retry_count, max_retries,
			due_at, ready_seq, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, nextval('queue_ready_seq'), $10)`,
		job.ID, job.Queue, job.Operation, job.Payload, string(job.Mode), string(job.Status),
		job.RetryCount, job.MaxRetries, job.DueAt, job.CreatedAt,
	)
	return insertError(err)
}

// ScheduleJob implements queue.DispatcherRepository
func (s *Storage) ScheduleJob(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return errors.New("pgstore: job cannot be nil")
	}

	_, err := s.pool.Exec(ctx, `
		WITH inserted AS (
			INSERT INTO queue_jobs (
				id, queue, operation, payload, mode, status, retry_count, max_retries,
				due_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, due_at
		)
		INSERT INTO queue_schedule (job_id, due_at)
		SELECT id, due_at FROM inserted`,
		job.ID, job.Queue, job.Operation, job.Payload, string(job.Mode), string(job.Status),
		job.RetryCount, job.MaxRetries, job.DueAt, job.CreatedAt,
	)
	return insertError(err)
}

func insertError(err error) error {
	switch {
	case err == nil:
		return nil
	case pg.IsDuplicateKeyError(err):
		return queue.ErrJobAlreadyExists
	default:
		return fmt.Errorf("pgstore: insert job: %w", err)
	}
}

// GetJob implements queue.DispatcherRepository. Finished jobs past the
// result TTL read as queue.ErrJobNotFound.
func (s *Storage) GetJob(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM queue_jobs
		WHERE id = $1 AND (finished_at IS NULL OR finished_at > $2)`,
		id, s.clock.Now().Add(-s.resultTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: get job: %w", err)
	}
	return collectJob(rows, "get job")
}

// PromoteDue implements queue.PromoterRepository
func (s *Storage) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		WITH due AS (
			DELETE FROM queue_schedule
			WHERE job_id IN (
				SELECT job_id FROM queue_schedule
				WHERE due_at <= $1
				ORDER BY due_at
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)
			RETURNING job_id, due_at
		),
		positioned AS (
			SELECT job_id, nextval('queue_ready_seq') AS seq
			FROM (SELECT job_id FROM due ORDER BY due_at) ordered
		)
		UPDATE queue_jobs j
		SET ready_seq = positioned.seq
		FROM positioned
		WHERE j.id = positioned.job_id AND j.status = 'pending'`,
		now, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("pgstore: promote due: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RequeueExpired implements queue.PromoterRepository
func (s *Storage) RequeueExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_jobs
		SET status = 'pending', locked_by = NULL, locked_until = NULL,
			ready_seq = nextval('queue_ready_seq')
		WHERE id IN (
			SELECT id FROM queue_jobs
			WHERE status = 'running' AND locked_until <= $1
			FOR UPDATE SKIP LOCKED
		)`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("pgstore: requeue expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PurgeExpired implements queue.Purger
func (s *Storage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue_jobs WHERE finished_at IS NOT NULL AND finished_at <= $1`,
		now.Add(-s.resultTTL),
	)
	if err != nil {
		return 0, fmt.Errorf("pgstore: purge expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ClaimJob implements queue.WorkerRepository. Queues are tried in the order given.
func (s *Storage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, now time.Time, lockDuration time.Duration) (*queue.Job, error) {
	if len(queues) == 0 {
		return nil, queue.ErrNoJobToClaim
	}

	rows, err := s.pool.Query(ctx, `
		UPDATE queue_jobs
		SET status = 'running', started_at = $2, locked_by = $3, locked_until = $4, ready_seq = NULL
		WHERE status = 'pending' AND id = (
			SELECT id FROM queue_jobs
			WHERE status = 'pending' AND ready_seq IS NOT NULL AND queue = ANY($1)
			ORDER BY array_position($1::text[], queue), ready_seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		queues, now, workerID, now.Add(lockDuration),
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: claim job: %w", err)
	}

	job, err := collectJob(rows, "claim job")
	if errors.Is(err, queue.ErrJobNotFound) {
		return nil, queue.ErrNoJobToClaim
	}
	return job, err
}

// CompleteJob implements queue.WorkerRepository
func (s *Storage) CompleteJob(ctx context.Context, jobID, workerID uuid.UUID, now time.Time) error {
	return s.owned(ctx, "complete job", jobID, workerID, `
		UPDATE queue_jobs
		SET status = 'done', finished_at = $3, locked_by = NULL, locked_until = NULL
		WHERE id = $1 AND status = 'running' AND locked_by = $2`,
		now,
	)
}

// FailJob implements queue.WorkerRepository
func (s *Storage) FailJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, now time.Time) error {
	return s.owned(ctx, "fail job", jobID, workerID, `
		UPDATE queue_jobs
		SET status = 'failed', finished_at = $3, error = $4, locked_by = NULL, locked_until = NULL
		WHERE id = $1 AND status = 'running' AND locked_by = $2`,
		now, errorMsg,
	)
}

// RetryJob implements queue.WorkerRepository
func (s *Storage) RetryJob(ctx context.Context, jobID, workerID uuid.UUID, errorMsg string, dueAt time.Time) error {
	return s.owned(ctx, "retry job", jobID, workerID, `
		WITH retried AS (
			UPDATE queue_jobs
			SET status = 'pending', retry_count = retry_count + 1, error = $3, due_at = $4,
				locked_by = NULL, locked_until = NULL, ready_seq = NULL
			WHERE id = $1 AND status = 'running' AND locked_by = $2
			RETURNING id, due_at
		)
		INSERT INTO queue_schedule (job_id, due_at)
		SELECT id, due_at FROM retried
		ON CONFLICT (job_id) DO UPDATE SET due_at = EXCLUDED.due_at`,
		errorMsg, dueAt,
	)
}

// ExtendLock implements queue.WorkerRepository
func (s *Storage) ExtendLock(ctx context.Context, jobID, workerID uuid.UUID, until time.Time) error {
	return s.owned(ctx, "extend lock", jobID, workerID, `
		UPDATE queue_jobs
		SET locked_until = $3
		WHERE id = $1 AND status = 'running' AND locked_by = $2`,
		until,
	)
}

// owned runs a statement guarded by the claim predicate. When nothing matched
// it tells a missing job apart from one held by another worker.
func (s *Storage) owned(ctx context.Context, op string, jobID, workerID uuid.UUID, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, append([]any{jobID, workerID}, args...)...)
	if err != nil {
		return fmt.Errorf("pgstore: %s: %w", op, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queue_jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return fmt.Errorf("pgstore: %s: %w", op, err)
	}
	if !exists {
		return queue.ErrJobNotFound
	}
	return queue.ErrJobNotClaimed
}

// GetPendingJobByOperation implements queue.SchedulerRepository
func (s *Storage) GetPendingJobByOperation(ctx context.Context, operation string) (*queue.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM queue_jobs
		WHERE operation = $1 AND status = 'pending'
		ORDER BY due_at
		LIMIT 1`,
		operation,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: get pending job: %w", err)
	}
	return collectJob(rows, "get pending job")
}

// jobRow mirrors jobColumns
type jobRow struct {
	ID          uuid.UUID  `db:"id"`
	Queue       string     `db:"queue"`
	Operation   string     `db:"operation"`
	Payload     []byte     `db:"payload"`
	Mode        string     `db:"mode"`
	Status      string     `db:"status"`
	RetryCount  int16      `db:"retry_count"`
	MaxRetries  int16      `db:"max_retries"`
	DueAt       time.Time  `db:"due_at"`
	LockedBy    *uuid.UUID `db:"locked_by"`
	LockedUntil *time.Time `db:"locked_until"`
	StartedAt   *time.Time `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	Error       *string    `db:"error"`
	CreatedAt   time.Time  `db:"created_at"`
}

func collectJob(rows pgx.Rows, op string) (*queue.Job, error) {
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[jobRow])
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, queue.ErrJobNotFound
		}
		return nil, fmt.Errorf("pgstore: %s: %w", op, err)
	}
	return row.job(), nil
}

func (r jobRow) job() *queue.Job {
	return &queue.Job{
		ID:          r.ID,
		Queue:       r.Queue,
		Operation:   r.Operation,
		Payload:     r.Payload,
		Mode:        queue.ModeKind(r.Mode),
		Status:      queue.JobStatus(r.Status),
		RetryCount:  int8(r.RetryCount),
		MaxRetries:  int8(r.MaxRetries),
		DueAt:       r.DueAt.UTC(),
		LockedBy:    r.LockedBy,
		LockedUntil: utc(r.LockedUntil),
		StartedAt:   utc(r.StartedAt),
		FinishedAt:  utc(r.FinishedAt),
		Error:       r.Error,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
