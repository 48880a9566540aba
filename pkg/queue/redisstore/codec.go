package redisstore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/storefront/pkg/queue"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func unixMilli(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// encodeJob flattens a job into HSET field/value pairs. Optional attributes
// are omitted when unset.
func encodeJob(job *queue.Job) []any {
	fields := []any{
		"id", job.ID.String(),
		"queue", job.Queue,
		"operation", job.Operation,
		"payload", string(job.Payload),
		"mode", string(job.Mode),
		"status", string(job.Status),
		"retry_count", strconv.Itoa(int(job.RetryCount)),
		"max_retries", strconv.Itoa(int(job.MaxRetries)),
		"due_at", formatTime(job.DueAt),
		"created_at", formatTime(job.CreatedAt),
	}
	if job.Error != nil {
		fields = append(fields, "error", *job.Error)
	}
	return fields
}

// decodeJob rebuilds a job from an HGETALL reply
func decodeJob(m map[string]string) (*queue.Job, error) {
	id, err := uuid.Parse(m["id"])
	if err != nil {
		return nil, fmt.Errorf("decode id: %w", err)
	}

	job := &queue.Job{
		ID:        id,
		Queue:     m["queue"],
		Operation: m["operation"],
		Mode:      queue.ModeKind(m["mode"]),
		Status:    queue.JobStatus(m["status"]),
	}
	if p := m["payload"]; p != "" {
		job.Payload = []byte(p)
	}

	if job.RetryCount, err = parseInt8(m["retry_count"]); err != nil {
		return nil, fmt.Errorf("decode retry_count: %w", err)
	}
	if job.MaxRetries, err = parseInt8(m["max_retries"]); err != nil {
		return nil, fmt.Errorf("decode max_retries: %w", err)
	}
	if job.DueAt, err = time.Parse(timeLayout, m["due_at"]); err != nil {
		return nil, fmt.Errorf("decode due_at: %w", err)
	}
	if job.CreatedAt, err = time.Parse(timeLayout, m["created_at"]); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}

	for field, dst := range map[string]**time.Time{
		"started_at":   &job.StartedAt,
		"finished_at":  &job.FinishedAt,
		"locked_until": &job.LockedUntil,
	} {
		v, ok := m[field]
		if !ok || v == "" {
			continue
		}
		t, err := time.Parse(timeLayout, v)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
		*dst = &t
	}

	if v, ok := m["locked_by"]; ok && v != "" {
		owner, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("decode locked_by: %w", err)
		}
		job.LockedBy = &owner
	}
	if v, ok := m["error"]; ok {
		job.Error = &v
	}

	return job, nil
}

func parseInt8(s string) (int8, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 8)
	return int8(n), err
}
