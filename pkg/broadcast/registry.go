package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

// DefaultSendTimeout bounds a single session send during Broadcast
const DefaultSendTimeout = 5 * time.Second

// Report summarizes one Broadcast call. Aborted counts sends cut short
// because the caller's context ended; those sessions stay registered.
type Report struct {
	Delivered int
	Failed    int
	Aborted   int
}

// Registry is the set of open sessions. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session
	closed   bool

	sendTimeout  time.Duration
	logger       *slog.Logger
	onSize       func(n int)
	onSendFailed func(sessionID string, err error)
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithSendTimeout bounds each per-session send of a broadcast
func WithSendTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithRegistryLogger sets the logger
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSizeCallback is invoked with the new session count after every change
func WithSizeCallback(fn func(n int)) RegistryOption {
	return func(r *Registry) {
		r.onSize = fn
	}
}

// WithSendFailureCallback is invoked for every failed send of a broadcast
func WithSendFailureCallback(fn func(sessionID string, err error)) RegistryOption {
	return func(r *Registry) {
		r.onSendFailed = fn
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:    make(map[string]Session),
		sendTimeout: DefaultSendTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("broadcast"))
	return r
}

// Connect runs the handshake and registers the resulting session.
// A failed handshake leaves the registry unchanged.
func (r *Registry) Connect(ctx context.Context, h Handshaker) (Session, error) {
	if r.isClosed() {
		return nil, ErrRegistryClosed
	}

	s, err := h.Handshake(ctx)
	if err != nil {
		return nil, errors.Join(ErrHandshakeFailed, err)
	}

	if err := r.Add(s); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Add registers a session whose transport is already open
func (r *Registry) Add(s Session) error {
	if s == nil {
		return ErrNilSession
	}
	if s.State() == StateClosed {
		return ErrSessionClosed
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if current, ok := r.sessions[s.ID()]; ok {
		r.mu.Unlock()
		if current == s {
			return nil
		}
		return ErrDuplicateSession
	}
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("session connected", logger.SessionID(s.ID()), slog.Int("sessions", n))
	r.sizeChanged(n)
	return nil
}

// Disconnect removes the session if present and closes it.
// Calling it again, or for an unknown session, only closes the session.
func (r *Registry) Disconnect(s Session) {
	if s == nil {
		return
	}

	r.mu.Lock()
	current, ok := r.sessions[s.ID()]
	removed := ok && current == s
	if removed {
		delete(r.sessions, s.ID())
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if err := s.Close(); err != nil {
		r.logger.Debug("session close failed", logger.SessionID(s.ID()), logger.Error(err))
	}

	if removed {
		r.logger.Debug("session disconnected", logger.SessionID(s.ID()), slog.Int("sessions", n))
		r.sizeChanged(n)
	}
}

// Broadcast sends text to every session open when the call starts. Sends run
// concurrently, each bounded by the send timeout. Sessions whose send fails are
// disconnected before Broadcast returns. A send interrupted by the end of ctx
// is reported as aborted and its session is kept.
func (r *Registry) Broadcast(ctx context.Context, text string) Report {
	targets := r.Sessions()
	if len(targets) == 0 {
		return Report{}
	}

	errs := make([]error, len(targets))
	aborted := make([]bool, len(targets))
	var wg sync.WaitGroup
	for i, s := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
			defer cancel()
			errs[i] = s.Send(sendCtx, text)
			aborted[i] = errs[i] != nil && ctx.Err() != nil && interrupted(errs[i])
		}()
	}
	wg.Wait()

	var report Report
	for i, err := range errs {
		if err == nil {
			report.Delivered++
			continue
		}
		if aborted[i] {
			report.Aborted++
			continue
		}

		report.Failed++
		s := targets[i]
		r.logger.WarnContext(ctx, "broadcast send failed", logger.SessionID(s.ID()), logger.Error(err))
		if r.onSendFailed != nil {
			r.onSendFailed(s.ID(), err)
		}
		r.Disconnect(s)
	}
	return report
}

// interrupted reports whether a send error comes from its context rather
// than from the peer.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of the registered sessions
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Close disconnects every session and rejects further registrations.
// It is safe to call Close multiple times.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.sizeChanged(0)
	return errors.Join(errs...)
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Registry) sizeChanged(n int) {
	if r.onSize != nil {
		r.onSize(n)
	}
}
