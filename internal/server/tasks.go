package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/storefront/internal/tasks"
	"github.com/dmitrymomot/storefront/pkg/queue"
)

// submitted is the body of a task submission response
type submitted struct {
	Message string    `json:"message"`
	JobID   uuid.UUID `json:"job_id"`
}

// jobView is a job as reported by the status endpoint
type jobView struct {
	ID         uuid.UUID       `json:"id"`
	Operation  string          `json:"operation"`
	Mode       queue.ModeKind  `json:"mode"`
	Status     queue.JobStatus `json:"status"`
	DueAt      time.Time       `json:"due_at"`
	RetryCount int8            `json:"retry_count"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Error      *string         `json:"error,omitempty"`
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "Hello World!", func(*http.Request) (queue.Mode, error) {
		return queue.Immediate(), nil
	})
}

func (s *Server) handleBye(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "Bye World!", func(r *http.Request) (queue.Mode, error) {
		raw := r.URL.Query().Get("delay")
		if raw == "" {
			return queue.Delay(s.cfg.ByeDelay), nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return queue.Mode{}, badRequest("delay must be a duration such as 90s or 5m")
		}
		return queue.Delay(d), nil
	})
}

func (s *Server) handleGood(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "Hello World!", func(r *http.Request) (queue.Mode, error) {
		raw := r.URL.Query().Get("at")
		if raw == "" {
			return queue.At(s.clock.Now().Add(s.cfg.GoodAfter)), nil
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return queue.Mode{}, badRequest("at must be an RFC 3339 timestamp")
		}
		return queue.At(at), nil
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, reply string, mode func(*http.Request) (queue.Mode, error)) {
	q := r.URL.Query()
	if !q.Has("message") {
		writeError(w, r, s.log, badRequest("message is required"))
		return
	}

	m, err := mode(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	id, err := s.dispatcher.Submit(r.Context(), tasks.OperationMessage,
		tasks.MessagePayload{Message: q.Get("message")}, m)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	writeData(w, submitted{Message: reply, JobID: id})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, badRequest("id must be a UUID"))
		return
	}

	job, err := s.dispatcher.Status(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	writeData(w, jobView{
		ID:         job.ID,
		Operation:  job.Operation,
		Mode:       job.Mode,
		Status:     job.Status,
		DueAt:      job.DueAt,
		RetryCount: job.RetryCount,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		Error:      job.Error,
	})
}
