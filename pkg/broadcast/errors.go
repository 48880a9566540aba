package broadcast

import "errors"

var (
	// ErrRegistryClosed is returned when sessions are added to a closed registry
	ErrRegistryClosed = errors.New("broadcast: registry is closed")

	// ErrSessionClosed is returned when sending to or registering a closed session
	ErrSessionClosed = errors.New("broadcast: session is closed")

	// ErrSendTimeout is returned when a send does not complete within its deadline
	ErrSendTimeout = errors.New("broadcast: send timed out")

	// ErrHandshakeFailed wraps transport errors raised while opening a session
	ErrHandshakeFailed = errors.New("broadcast: handshake failed")

	ErrNilSession = errors.New("broadcast: session cannot be nil")

	// ErrDuplicateSession is returned when another session with the same ID is registered
	ErrDuplicateSession = errors.New("broadcast: session id already registered")
)
