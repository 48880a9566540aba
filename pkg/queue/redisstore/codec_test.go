package redisstore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/queue"
)

func fieldMap(t *testing.T, pairs []any) map[string]string {
	t.Helper()
	require.Zero(t, len(pairs)%2)

	m := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(string)] = pairs[i+1].(string)
	}
	return m
}

func TestCodec(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, time.March, 1, 10, 0, 0, 123456789, time.UTC)

	t.Run("pending job round trip", func(t *testing.T) {
		t.Parallel()

		job := &queue.Job{
			ID:         uuid.New(),
			Queue:      "default",
			Operation:  "tasks.message",
			Payload:    []byte(`{"text":"hi"}`),
			Mode:       queue.ModeDelay,
			Status:     queue.JobStatusPending,
			RetryCount: 1,
			MaxRetries: 3,
			DueAt:      created.Add(5 * time.Second),
			CreatedAt:  created,
		}

		got, err := decodeJob(fieldMap(t, encodeJob(job)))
		require.NoError(t, err)
		assert.Equal(t, job, got)
	})

	t.Run("nil payload stays nil", func(t *testing.T) {
		t.Parallel()

		job := &queue.Job{
			ID:        uuid.New(),
			Queue:     "default",
			Operation: "noop",
			Mode:      queue.ModeImmediate,
			Status:    queue.JobStatusPending,
			DueAt:     created,
			CreatedAt: created,
		}

		got, err := decodeJob(fieldMap(t, encodeJob(job)))
		require.NoError(t, err)
		assert.Nil(t, got.Payload)
		assert.Nil(t, got.Error)
	})

	t.Run("fields written by scripts", func(t *testing.T) {
		t.Parallel()

		owner := uuid.New()
		m := map[string]string{
			"id":           uuid.NewString(),
			"queue":        "default",
			"operation":    "op",
			"mode":         "immediate",
			"status":       "running",
			"retry_count":  "2",
			"max_retries":  "3",
			"due_at":       formatTime(created),
			"created_at":   formatTime(created),
			"started_at":   formatTime(created.Add(time.Second)),
			"locked_until": formatTime(created.Add(time.Minute)),
			"locked_by":    owner.String(),
			"error":        "boom",
		}

		job, err := decodeJob(m)
		require.NoError(t, err)
		assert.Equal(t, int8(2), job.RetryCount)
		require.NotNil(t, job.StartedAt)
		assert.True(t, job.StartedAt.Equal(created.Add(time.Second)))
		require.NotNil(t, job.LockedUntil)
		assert.True(t, job.LockedUntil.Equal(created.Add(time.Minute)))
		require.NotNil(t, job.LockedBy)
		assert.Equal(t, owner, *job.LockedBy)
		require.NotNil(t, job.Error)
		assert.Equal(t, "boom", *job.Error)
		assert.Nil(t, job.FinishedAt)
	})

	t.Run("malformed values", func(t *testing.T) {
		t.Parallel()

		base := func() map[string]string {
			return map[string]string{
				"id":         uuid.NewString(),
				"due_at":     formatTime(created),
				"created_at": formatTime(created),
			}
		}

		for field, value := range map[string]string{
			"id":          "not-a-uuid",
			"retry_count": "300",
			"due_at":      "yesterday",
			"finished_at": "soon",
			"locked_by":   "nobody",
		} {
			m := base()
			m[field] = value
			_, err := decodeJob(m)
			assert.Error(t, err, field)
		}
	})
}

func TestUnixMilli(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1704110400000", unixMilli(time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)))
}
