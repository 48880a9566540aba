package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// CircuitBreakerHook is a redis.Hook that fails commands fast while Redis is
// unavailable. redis.Nil replies count as successes.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ redis.Hook = (*CircuitBreakerHook)(nil)

// BreakerOption configures a CircuitBreakerHook
type BreakerOption func(*gobreaker.Settings)

// WithBreakerStateChange registers a callback for breaker state transitions
func WithBreakerStateChange(fn func(from, to gobreaker.State)) BreakerOption {
	return func(s *gobreaker.Settings) {
		prev := s.OnStateChange
		s.OnStateChange = func(name string, from, to gobreaker.State) {
			if prev != nil {
				prev(name, from, to)
			}
			fn(from, to)
		}
	}
}

// NewCircuitBreakerHook builds a hook from the breaker fields of cfg
func NewCircuitBreakerHook(cfg Config, logger *slog.Logger, opts ...BreakerOption) *CircuitBreakerHook {
	if logger == nil {
		logger = slog.Default()
	}

	minRequests := max(cfg.BreakerMinRequests, 1)
	ratio := cfg.BreakerFailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: max(cfg.BreakerHalfOpenMax, 1),
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("component", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	for _, opt := range opts {
		opt(&settings)
	}

	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(settings)}
}

// DialHook wraps connection establishment
func (h *CircuitBreakerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (any, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, h.wrap(err)
		}
		return conn.(net.Conn), nil
	}
}

// ProcessHook wraps single command execution
func (h *CircuitBreakerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		_, err := h.cb.Execute(func() (any, error) {
			return nil, next(ctx, cmd)
		})
		return h.wrap(err)
	}
}

// ProcessPipelineHook wraps pipelines and transactions as one request
func (h *CircuitBreakerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		_, err := h.cb.Execute(func() (any, error) {
			return nil, next(ctx, cmds)
		})
		return h.wrap(err)
	}
}

// wrap keeps redis.Nil untouched so callers can still compare against it
func (h *CircuitBreakerHook) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	default:
		return err
	}
}

// State returns the current breaker state
func (h *CircuitBreakerHook) State() gobreaker.State {
	return h.cb.State()
}

// Counts returns the request counters of the current window
func (h *CircuitBreakerHook) Counts() gobreaker.Counts {
	return h.cb.Counts()
}
