package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrDispatcherNil is returned when a nil dispatcher is provided
	ErrDispatcherNil = errors.New("dispatcher cannot be nil")

	// ErrOperationEmpty is returned when a job is submitted without an operation name
	ErrOperationEmpty = errors.New("operation name cannot be empty")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrPayloadMarshal is returned when payload marshaling fails
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrInvalidPayload is returned by handlers when the stored payload does not decode
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrInvalidSchedule is returned when the dispatch mode is malformed
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrDispatchUnavailable is returned when the broker stayed unreachable for every submit attempt
	ErrDispatchUnavailable = errors.New("dispatch unavailable")

	// ErrJobNotFound is returned when a job is unknown or its result has expired
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyExists is returned when a job with the same ID is already stored
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrJobNotClaimed is returned when a worker reports on a job it no longer holds
	ErrJobNotClaimed = errors.New("job is not claimed by this worker")

	// ErrNoJobToClaim is returned when no job is ready for execution
	ErrNoJobToClaim = errors.New("no job to claim")

	// ErrHandlerNotFound is returned when no handler is registered for an operation
	ErrHandlerNotFound = errors.New("no handler registered for operation")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrTaskAlreadyRegistered is returned when trying to register a duplicate periodic task
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrSchedulerNotConfigured is returned when scheduler has no tasks
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered tasks")

	// ErrInvalidCronExpression is returned when a cron schedule cannot be parsed
	ErrInvalidCronExpression = errors.New("invalid cron expression")

	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotStarted is returned when Stop is called before Start
	ErrNotStarted = errors.New("not started")

	// ErrShutdownTimeout is returned when active jobs outlive the shutdown timeout
	ErrShutdownTimeout = errors.New("shutdown timed out")
)
