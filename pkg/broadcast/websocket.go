package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

var _ DuplexSession = (*WebSocketSession)(nil)

type outgoing struct {
	data   []byte
	result chan error
}

// WebSocketSession is a Session over a gorilla/websocket connection.
// A single writer goroutine owns all writes, including keepalive pings.
type WebSocketSession struct {
	id       string
	clientID string
	conn     *websocket.Conn
	clock    clockwork.Clock

	writeTimeout time.Duration
	pingInterval time.Duration
	pongTimeout  time.Duration

	state     atomic.Int32
	outbound  chan outgoing
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WebSocketOption configures a WebSocketSession
type WebSocketOption func(*wsSettings)

type wsSettings struct {
	clock          clockwork.Clock
	writeTimeout   time.Duration
	pingInterval   time.Duration
	pongTimeout    time.Duration
	maxMessageSize int64
	sendBuffer     int
	origins        []string
}

func WithClock(clock clockwork.Clock) WebSocketOption {
	return func(s *wsSettings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(s *wsSettings) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithKeepalive sets the ping period and how long the peer may stay silent
func WithKeepalive(pingInterval, pongTimeout time.Duration) WebSocketOption {
	return func(s *wsSettings) {
		if pingInterval > 0 {
			s.pingInterval = pingInterval
		}
		if pongTimeout > 0 {
			s.pongTimeout = pongTimeout
		}
	}
}

func WithMaxMessageSize(n int64) WebSocketOption {
	return func(s *wsSettings) {
		if n > 0 {
			s.maxMessageSize = n
		}
	}
}

func WithSendBuffer(n int) WebSocketOption {
	return func(s *wsSettings) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithAllowedOrigins lists the Origin values accepted by Upgrade, compared as
// scheme://host[:port]. "*" accepts any origin. With no list, only requests
// whose Origin matches the Host header are accepted. Requests without an
// Origin header (non-browser clients) are always accepted.
func WithAllowedOrigins(origins ...string) WebSocketOption {
	return func(s *wsSettings) {
		for _, o := range origins {
			if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
				s.origins = append(s.origins, o)
			}
		}
	}
}

// WithWebSocketConfig applies the transport fields of cfg
func WithWebSocketConfig(cfg Config) WebSocketOption {
	return func(s *wsSettings) {
		WithWriteTimeout(cfg.WriteTimeout)(s)
		WithKeepalive(cfg.PingInterval, cfg.PongTimeout)(s)
		WithMaxMessageSize(cfg.MaxMessageSize)(s)
		WithSendBuffer(cfg.SendBuffer)(s)
		WithAllowedOrigins(cfg.AllowedOrigins...)(s)
	}
}

// NewWebSocketSession wraps an upgraded connection and starts its writer.
// Read deadlines use wall time, so production code should keep the real clock.
func NewWebSocketSession(conn *websocket.Conn, clientID string, opts ...WebSocketOption) *WebSocketSession {
	settings := newSettings(opts)

	s := &WebSocketSession{
		id:           uuid.NewString(),
		clientID:     clientID,
		conn:         conn,
		clock:        settings.clock,
		writeTimeout: settings.writeTimeout,
		pingInterval: settings.pingInterval,
		pongTimeout:  settings.pongTimeout,
		outbound:     make(chan outgoing, settings.sendBuffer),
		done:         make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))

	conn.SetReadLimit(settings.maxMessageSize)
	s.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	s.wg.Add(1)
	go s.writeLoop()

	s.state.Store(int32(StateOpen))
	return s
}

func newSettings(opts []WebSocketOption) wsSettings {
	settings := wsSettings{
		clock:          clockwork.NewRealClock(),
		writeTimeout:   5 * time.Second,
		pingInterval:   30 * time.Second,
		pongTimeout:    60 * time.Second,
		maxMessageSize: 4096,
		sendBuffer:     16,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// Upgrade returns a Handshaker that upgrades the request to a WebSocket session
func Upgrade(w http.ResponseWriter, r *http.Request, clientID string, opts ...WebSocketOption) Handshaker {
	return HandshakerFunc(func(ctx context.Context) (Session, error) {
		settings := newSettings(opts)
		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(settings.origins),
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return nil, err
		}
		return NewWebSocketSession(conn, clientID, opts...), nil
	})
}

// checkOrigin returns nil for an empty list so gorilla applies its
// same-host rule.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		origin = u.Scheme + "://" + u.Host
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (s *WebSocketSession) ID() string          { return s.id }
func (s *WebSocketSession) ClientID() string    { return s.clientID }
func (s *WebSocketSession) State() SessionState { return SessionState(s.state.Load()) }

// Send writes a text frame and waits for the write to finish or ctx to end
func (s *WebSocketSession) Send(ctx context.Context, text string) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}

	out := outgoing{data: []byte(text), result: make(chan error, 1)}
	select {
	case s.outbound <- out:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return sendError(ctx)
	}

	select {
	case err := <-out.result:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return sendError(ctx)
	}
}

// ReadText returns the next inbound text frame. Binary frames are skipped.
func (s *WebSocketSession) ReadText() (string, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() != StateOpen {
				return "", ErrSessionClosed
			}
			return "", err
		}
		s.extendReadDeadline()
		if kind == websocket.TextMessage {
			return string(data), nil
		}
	}
}

// Close stops the writer, sends a close frame and closes the connection
func (s *WebSocketSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stop()
		s.wg.Wait()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.clock.Now().Add(s.writeTimeout))

		if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = fmt.Errorf("close websocket: %w", cerr)
		}
		s.state.Store(int32(StateClosed))
	})
	return err
}

func (s *WebSocketSession) stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		close(s.done)
	})
}

func (s *WebSocketSession) writeLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-s.outbound:
			s.setWriteDeadline()
			if err := s.conn.WriteMessage(websocket.TextMessage, out.data); err != nil {
				out.result <- fmt.Errorf("write frame: %w", err)
				s.stop()
				return
			}
			out.result <- nil
		case <-ticker.Chan():
			s.setWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.stop()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *WebSocketSession) setWriteDeadline() {
	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(s.writeTimeout))
}

func (s *WebSocketSession) extendReadDeadline() {
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(s.pongTimeout))
}
