package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Handler executes one operation. Name must match Job.Operation.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

type (
	TaskHandlerFunc[T any]  func(ctx context.Context, payload T) error
	PeriodicTaskHandlerFunc func(ctx context.Context) error
)

// NewHandler decodes the JSON payload into T and calls fn. A missing payload
// decodes to the zero value.
func NewHandler[T any](name string, fn TaskHandlerFunc[T]) Handler {
	return typedHandler[T]{name: name, fn: fn}
}

// NewTaskHandler is NewHandler named after T, as in "pkg.Type". It pairs with
// Dispatcher.Enqueue.
func NewTaskHandler[T any](fn TaskHandlerFunc[T]) Handler {
	var zero T
	return typedHandler[T]{name: qualifiedStructName(zero), fn: fn}
}

// NewPeriodicTaskHandler ignores whatever payload the job carries.
func NewPeriodicTaskHandler(name string, fn PeriodicTaskHandlerFunc) Handler {
	return typedHandler[json.RawMessage]{name: name, fn: func(ctx context.Context, _ json.RawMessage) error {
		return fn(ctx)
	}}
}

type typedHandler[T any] struct {
	name string
	fn   TaskHandlerFunc[T]
}

func (h typedHandler[T]) Name() string { return h.name }

func (h typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var v T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, h.name, err)
		}
	}
	return h.fn(ctx, v)
}

func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
