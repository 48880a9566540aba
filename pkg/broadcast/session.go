package broadcast

import (
	"context"
	"errors"
)

// SessionState is the lifecycle position of a session
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one live duplex channel to a client.
// Implementations must be safe for concurrent use; Close is idempotent.
type Session interface {
	ID() string
	Send(ctx context.Context, text string) error
	Close() error
	State() SessionState
}

// DuplexSession is a session that also yields inbound text frames.
// ReadText must be called from a single goroutine.
type DuplexSession interface {
	Session
	ClientID() string
	ReadText() (string, error)
}

// Handshaker opens a session, e.g. by upgrading an HTTP request
type Handshaker interface {
	Handshake(ctx context.Context) (Session, error)
}

// HandshakerFunc adapts a function to Handshaker
type HandshakerFunc func(ctx context.Context) (Session, error)

func (f HandshakerFunc) Handshake(ctx context.Context) (Session, error) {
	return f(ctx)
}

// sendError maps a context failure during a send
func sendError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrSendTimeout, ctx.Err())
	}
	return ctx.Err()
}
