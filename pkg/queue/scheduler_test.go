package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/queue"
)

// MockSchedulerRepository is a mock implementation of SchedulerRepository
type MockSchedulerRepository struct {
	mock.Mock
}

func (m *MockSchedulerRepository) GetPendingJobByOperation(ctx context.Context, operation string) (*queue.Job, error) {
	args := m.Called(ctx, operation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Job), args.Error(1)
}

func newScheduler(t *testing.T, r *rig) *queue.Scheduler {
	t.Helper()

	s, err := queue.NewScheduler(r.dispatcher, r.storage,
		queue.WithSchedulerClock(r.clock),
		queue.WithCheckInterval(10*time.Second),
		queue.WithSchedulerLogger(discardLogger))
	require.NoError(t, err)
	return s
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	r := newRig()

	_, err := queue.NewScheduler(nil, r.storage)
	assert.ErrorIs(t, err, queue.ErrDispatcherNil)

	_, err = queue.NewScheduler(r.dispatcher, nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
}

func TestScheduler_AddTask(t *testing.T) {
	t.Parallel()

	r := newRig()
	s := newScheduler(t, r)

	require.NoError(t, s.AddTask("report", queue.EveryMinute()))
	assert.ErrorIs(t, s.AddTask("report", queue.Hourly()), queue.ErrTaskAlreadyRegistered)
	assert.ErrorIs(t, s.AddTask("", queue.Hourly()), queue.ErrOperationEmpty)
	assert.ElementsMatch(t, []string{"report"}, s.ListTasks())

	s.RemoveTask("report")
	assert.Empty(t, s.ListTasks())

	assert.ErrorIs(t, s.Start(context.Background()), queue.ErrSchedulerNotConfigured)
}

func TestScheduler_CheckTasks(t *testing.T) {
	t.Parallel()

	t.Run("submits one pending run at a time", func(t *testing.T) {
		t.Parallel()
		r := newRig()
		s := newScheduler(t, r)
		ctx := context.Background()

		require.NoError(t, s.AddTask("run-me-background-task", queue.EveryInterval(time.Minute),
			queue.WithTaskPayload("Test text message"), queue.WithTaskQueue("periodic")))

		s.CheckTasks(ctx)
		s.CheckTasks(ctx)

		jobs := r.storage.Jobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, "run-me-background-task", jobs[0].Operation)
		assert.Equal(t, "periodic", jobs[0].Queue)
		assert.Equal(t, queue.ModeAt, jobs[0].Mode)
		assert.Equal(t, epoch.Add(time.Minute), jobs[0].DueAt)
		assert.JSONEq(t, `"Test text message"`, string(jobs[0].Payload))
	})

	t.Run("next run submitted once the previous became due", func(t *testing.T) {
		t.Parallel()
		r := newRig(queue.WithQueues("default"))
		s := newScheduler(t, r)
		ctx := context.Background()

		runs := 0
		require.NoError(t, r.worker.RegisterHandler(queue.NewPeriodicTaskHandler("tick", func(context.Context) error {
			runs++
			return nil
		})))
		require.NoError(t, s.AddTask("tick", queue.EveryInterval(time.Minute)))

		s.CheckTasks(ctx)

		r.clock.Advance(time.Minute)
		_, _, err := r.promoter.Tick(ctx)
		require.NoError(t, err)
		ok, err := r.worker.ProcessNext(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		s.CheckTasks(ctx)

		jobs := r.storage.Jobs()
		require.Len(t, jobs, 2)
		assert.Equal(t, queue.JobStatusDone, jobs[0].Status)
		assert.Equal(t, queue.JobStatusPending, jobs[1].Status)
		assert.Equal(t, epoch.Add(2*time.Minute), jobs[1].DueAt)
		assert.Equal(t, 1, runs)
	})

	t.Run("missed slot runs now", func(t *testing.T) {
		t.Parallel()
		r := newRig()
		s := newScheduler(t, r)
		ctx := context.Background()

		require.NoError(t, r.worker.RegisterHandler(queue.NewPeriodicTaskHandler("tick", func(context.Context) error { return nil })))
		require.NoError(t, s.AddTask("tick", queue.EveryInterval(time.Minute)))
		s.CheckTasks(ctx)

		r.clock.Advance(5 * time.Minute)
		_, _, err := r.promoter.Tick(ctx)
		require.NoError(t, err)
		_, err = r.worker.ProcessNext(ctx)
		require.NoError(t, err)

		s.CheckTasks(ctx)

		jobs := r.storage.Jobs()
		require.Len(t, jobs, 2)
		assert.Equal(t, r.clock.Now(), jobs[1].DueAt)
	})

	t.Run("lookup error skips submission", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		repo := new(MockSchedulerRepository)
		repo.On("GetPendingJobByOperation", mock.Anything, "tick").Return(nil, errors.New("db down"))

		s, err := queue.NewScheduler(r.dispatcher, repo,
			queue.WithSchedulerClock(r.clock),
			queue.WithSchedulerLogger(discardLogger))
		require.NoError(t, err)
		require.NoError(t, s.AddTask("tick", queue.EveryMinute()))

		s.CheckTasks(context.Background())
		assert.Empty(t, r.storage.Jobs())
		repo.AssertExpectations(t)
	})
}

func TestScheduler_ReplicasShareSlots(t *testing.T) {
	t.Parallel()
	r := newRig()
	ctx := context.Background()

	// Neither replica sees the other's pending job before submitting.
	repo := new(MockSchedulerRepository)
	repo.On("GetPendingJobByOperation", mock.Anything, "tick").Return(nil, queue.ErrJobNotFound)

	replicas := make([]*queue.Scheduler, 2)
	for i := range replicas {
		s, err := queue.NewScheduler(r.dispatcher, repo,
			queue.WithSchedulerClock(r.clock),
			queue.WithSchedulerLogger(discardLogger))
		require.NoError(t, err)
		require.NoError(t, s.AddTask("tick", queue.EveryMinute()))
		replicas[i] = s
	}

	for _, s := range replicas {
		s.CheckTasks(ctx)
	}
	jobs := r.storage.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, epoch.Add(time.Minute), jobs[0].DueAt)

	r.clock.Advance(time.Minute)
	for _, s := range replicas {
		s.CheckTasks(ctx)
	}
	jobs = r.storage.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, epoch.Add(2*time.Minute), jobs[1].DueAt)
}

func TestScheduler_Start(t *testing.T) {
	t.Parallel()

	r := newRig()
	s := newScheduler(t, r)
	require.NoError(t, s.AddTask("tick", queue.EveryMinute()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx)() }()

	require.Eventually(t, func() bool { return len(r.storage.Jobs()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
