package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/queue"
	"github.com/dmitrymomot/storefront/pkg/retry"
)

// MockDispatcherRepository is a mock implementation of DispatcherRepository
type MockDispatcherRepository struct {
	mock.Mock
}

func (m *MockDispatcherRepository) EnqueueJob(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockDispatcherRepository) ScheduleJob(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockDispatcherRepository) GetJob(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Job), args.Error(1)
}

func TestNewDispatcher(t *testing.T) {
	t.Parallel()

	d, err := queue.NewDispatcher(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	assert.Nil(t, d)
}

func TestDispatcher_Submit(t *testing.T) {
	t.Parallel()

	t.Run("immediate goes to ready queue", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		id, err := r.dispatcher.SubmitNow(context.Background(), "tasks.message", testPayload{Message: "hello"})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		ready, scheduled := r.storage.Stats()
		assert.Equal(t, 1, ready[queue.DefaultQueueName])
		assert.Zero(t, scheduled)

		job, err := r.dispatcher.Status(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, queue.JobStatusPending, job.Status)
		assert.Equal(t, queue.ModeImmediate, job.Mode)
		assert.Equal(t, epoch, job.DueAt)
		assert.JSONEq(t, `{"message":"hello","value":0}`, string(job.Payload))
	})

	t.Run("delay writes schedule entry", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		id, err := r.dispatcher.SubmitAfter(context.Background(), "tasks.message", nil, 5*time.Minute)
		require.NoError(t, err)

		ready, scheduled := r.storage.Stats()
		assert.Zero(t, ready[queue.DefaultQueueName])
		assert.Equal(t, 1, scheduled)

		job, err := r.dispatcher.Status(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, epoch.Add(5*time.Minute), job.DueAt)
		assert.Nil(t, job.Payload)
	})

	t.Run("at in the past is runnable at once", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		_, err := r.dispatcher.SubmitAt(context.Background(), "tasks.message", nil, epoch.Add(-time.Hour))
		require.NoError(t, err)

		ready, scheduled := r.storage.Stats()
		assert.Equal(t, 1, ready[queue.DefaultQueueName])
		assert.Zero(t, scheduled)
	})

	t.Run("submit options", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		id, err := r.dispatcher.SubmitNow(context.Background(), "op", nil,
			queue.WithQueue("emails"), queue.WithMaxRetries(3))
		require.NoError(t, err)

		job, err := r.dispatcher.Status(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "emails", job.Queue)
		assert.Equal(t, int8(3), job.MaxRetries)
	})

	t.Run("invalid schedule stores nothing", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		_, err := r.dispatcher.Submit(context.Background(), "op", nil, queue.Delay(-time.Second))
		assert.ErrorIs(t, err, queue.ErrInvalidSchedule)
		assert.Empty(t, r.storage.Jobs())
	})

	t.Run("empty operation", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		_, err := r.dispatcher.SubmitNow(context.Background(), "", nil)
		assert.ErrorIs(t, err, queue.ErrOperationEmpty)
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		_, err := r.dispatcher.SubmitNow(context.Background(), "op", make(chan int))
		assert.ErrorIs(t, err, queue.ErrPayloadMarshal)
	})

	t.Run("raw payload passes through", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		id, err := r.dispatcher.SubmitNow(context.Background(), "op", []byte(`{"a":1}`))
		require.NoError(t, err)

		job, err := r.dispatcher.Status(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"a":1}`), job.Payload)
	})
}

func TestDispatcher_Enqueue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   any
		operation string
	}{
		{name: "struct", payload: testPayload{Message: "x"}, operation: "queue_test.testPayload"},
		{name: "pointer", payload: &testPayload{Message: "x"}, operation: "queue_test.testPayload"},
		{name: "map", payload: map[string]string{"k": "v"}, operation: "map[string]string"},
		{name: "slice", payload: []string{"a"}, operation: "[]string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newRig()

			id, err := r.dispatcher.Enqueue(context.Background(), tt.payload, queue.Immediate())
			require.NoError(t, err)

			job, err := r.dispatcher.Status(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.operation, job.Operation)
		})
	}

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		_, err := r.dispatcher.Enqueue(context.Background(), nil, queue.Immediate())
		assert.ErrorIs(t, err, queue.ErrPayloadNil)
	})
}

func TestDispatcher_BrokerFailures(t *testing.T) {
	t.Parallel()

	t.Run("unavailable after every attempt fails", func(t *testing.T) {
		t.Parallel()

		repo := new(MockDispatcherRepository)
		cause := errors.New("connection refused")
		repo.On("EnqueueJob", mock.Anything, mock.Anything).Return(cause).Times(3)

		var failedOp string
		d, err := queue.NewDispatcher(repo,
			queue.WithSubmitPolicy(fastSubmit),
			queue.WithDispatcherLogger(discardLogger),
			queue.WithOnSubmitFailed(func(op string, _ error) { failedOp = op }))
		require.NoError(t, err)

		id, err := d.SubmitNow(context.Background(), "op", nil)
		assert.Equal(t, uuid.Nil, id)
		assert.ErrorIs(t, err, queue.ErrDispatchUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "op", failedOp)
		repo.AssertExpectations(t)
	})

	t.Run("transient error then success", func(t *testing.T) {
		t.Parallel()

		repo := new(MockDispatcherRepository)
		repo.On("ScheduleJob", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
		repo.On("ScheduleJob", mock.Anything, mock.Anything).Return(nil).Once()

		var submitted *queue.Job
		d, err := queue.NewDispatcher(repo,
			queue.WithSubmitPolicy(fastSubmit),
			queue.WithDispatcherLogger(discardLogger),
			queue.WithOnSubmitted(func(job *queue.Job) { submitted = job }))
		require.NoError(t, err)

		id, err := d.SubmitAfter(context.Background(), "op", nil, time.Minute)
		require.NoError(t, err)
		require.NotNil(t, submitted)
		assert.Equal(t, id, submitted.ID)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate on retry counts as accepted", func(t *testing.T) {
		t.Parallel()

		repo := new(MockDispatcherRepository)
		repo.On("EnqueueJob", mock.Anything, mock.Anything).Return(errors.New("i/o timeout")).Once()
		repo.On("EnqueueJob", mock.Anything, mock.Anything).Return(queue.ErrJobAlreadyExists).Once()

		d, err := queue.NewDispatcher(repo, queue.WithSubmitPolicy(fastSubmit), queue.WithDispatcherLogger(discardLogger))
		require.NoError(t, err)

		_, err = d.SubmitNow(context.Background(), "op", nil)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("context ending during backoff is reported as unavailable", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection refused")
		repo := new(MockDispatcherRepository)
		repo.On("EnqueueJob", mock.Anything, mock.Anything).Return(cause)

		var failedOp string
		d, err := queue.NewDispatcher(repo,
			queue.WithSubmitPolicy(retry.Policy{MaxAttempts: 5, InitialBackoff: time.Minute}),
			queue.WithDispatcherLogger(discardLogger),
			queue.WithOnSubmitFailed(func(op string, _ error) { failedOp = op }))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		id, err := d.SubmitNow(ctx, "op", nil)
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, uuid.Nil, id)
		assert.ErrorIs(t, err, queue.ErrDispatchUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "op", failedOp)
	})

	t.Run("explicit job id is kept", func(t *testing.T) {
		t.Parallel()
		r := newRig()

		want := uuid.New()
		id, err := r.dispatcher.SubmitNow(context.Background(), "op", nil, queue.WithJobID(want))
		require.NoError(t, err)
		assert.Equal(t, want, id)

		_, err = r.dispatcher.SubmitNow(context.Background(), "op", nil, queue.WithJobID(want))
		assert.ErrorIs(t, err, queue.ErrJobAlreadyExists)
	})

	t.Run("duplicate on first attempt is an error", func(t *testing.T) {
		t.Parallel()

		repo := new(MockDispatcherRepository)
		repo.On("EnqueueJob", mock.Anything, mock.Anything).Return(queue.ErrJobAlreadyExists).Once()

		d, err := queue.NewDispatcher(repo, queue.WithSubmitPolicy(fastSubmit), queue.WithDispatcherLogger(discardLogger))
		require.NoError(t, err)

		_, err = d.SubmitNow(context.Background(), "op", nil)
		assert.ErrorIs(t, err, queue.ErrJobAlreadyExists)
		assert.NotErrorIs(t, err, queue.ErrDispatchUnavailable)
		repo.AssertExpectations(t)
	})
}

func TestDispatcher_Status(t *testing.T) {
	t.Parallel()

	r := newRig()
	_, err := r.dispatcher.Status(context.Background(), uuid.New())
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}
