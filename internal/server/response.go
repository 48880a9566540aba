package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/storefront/pkg/environment"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/queue"
)

// Envelope is the body of every JSON response
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpError is a client-facing error with its status and code
type httpError struct {
	Status  int
	Code    string
	Message string
}

func (e httpError) Error() string { return e.Message }

func badRequest(msg string) error {
	return httpError{Status: http.StatusBadRequest, Code: "bad_request", Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Data: data})
}

// writeError maps known errors to statuses. Anything else is logged and
// reported as an internal error, with details only in development.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var herr httpError
	switch {
	case errors.As(err, &herr):
	case errors.Is(err, queue.ErrInvalidSchedule),
		errors.Is(err, queue.ErrPayloadMarshal),
		errors.Is(err, queue.ErrPayloadNil):
		herr = httpError{Status: http.StatusBadRequest, Code: "bad_request", Message: err.Error()}
	case errors.Is(err, queue.ErrJobNotFound):
		herr = httpError{Status: http.StatusNotFound, Code: "not_found", Message: "job not found"}
	case errors.Is(err, queue.ErrDispatchUnavailable):
		log.WarnContext(r.Context(), "dispatch unavailable", logger.Error(err))
		herr = httpError{Status: http.StatusServiceUnavailable, Code: "dispatch_unavailable", Message: "task dispatch is unavailable, retry later"}
	default:
		log.ErrorContext(r.Context(), "request failed", logger.Error(err))
		herr = httpError{Status: http.StatusInternalServerError, Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}
		if environment.FromContext(r.Context()) == environment.Development {
			herr.Message = err.Error()
		}
	}

	writeJSON(w, herr.Status, Envelope{Error: &ErrorDetail{Code: herr.Code, Message: herr.Message}})
}
