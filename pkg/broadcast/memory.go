package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

var _ DuplexSession = (*MemorySession)(nil)

// MemorySession is an in-process session. Sent texts are recorded and inbound
// frames are fed with Push. Failure modes can be injected for tests.
type MemorySession struct {
	id       string
	clientID string

	mu       sync.Mutex
	state    SessionState
	sent     []string
	sendErr  error
	blocking bool

	inbound chan string
	done    chan struct{}
}

// NewMemorySession creates an open session for clientID
func NewMemorySession(clientID string) *MemorySession {
	return &MemorySession{
		id:       uuid.NewString(),
		clientID: clientID,
		state:    StateOpen,
		inbound:  make(chan string, 16),
		done:     make(chan struct{}),
	}
}

func (m *MemorySession) ID() string       { return m.id }
func (m *MemorySession) ClientID() string { return m.clientID }

func (m *MemorySession) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send records text. It fails with the injected error, or waits for ctx when
// the session was set to block.
func (m *MemorySession) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	if m.state != StateOpen {
		m.mu.Unlock()
		return ErrSessionClosed
	}
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return err
	}
	blocking := m.blocking
	if !blocking {
		m.sent = append(m.sent, text)
	}
	m.mu.Unlock()

	if blocking {
		select {
		case <-ctx.Done():
			return sendError(ctx)
		case <-m.done:
			return ErrSessionClosed
		}
	}
	return nil
}

// FailWith makes every following Send return err
func (m *MemorySession) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Block makes every following Send wait until its context ends
func (m *MemorySession) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = true
}

// Messages returns the texts delivered so far
func (m *MemorySession) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// Push queues an inbound frame for ReadText
func (m *MemorySession) Push(text string) error {
	select {
	case <-m.done:
		return ErrSessionClosed
	default:
	}

	select {
	case m.inbound <- text:
		return nil
	case <-m.done:
		return ErrSessionClosed
	}
}

// ReadText blocks until a frame is pushed or the session closes
func (m *MemorySession) ReadText() (string, error) {
	select {
	case text := <-m.inbound:
		return text, nil
	case <-m.done:
		return "", ErrSessionClosed
	}
}

func (m *MemorySession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return nil
	}
	m.state = StateClosed
	close(m.done)
	return nil
}
