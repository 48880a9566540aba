// Package chat relays every inbound frame of a real-time session to all
// open sessions as "<client_id>: <text>".
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/storefront/pkg/broadcast"
	"github.com/dmitrymomot/storefront/pkg/logger"
)

var ErrNotDuplex = errors.New("session cannot receive frames")

// Room relays frames between the sessions of one registry.
type Room struct {
	registry *broadcast.Registry
	limit    rate.Limit
	burst    int
	clock    clockwork.Clock
	log      *slog.Logger
	onDrop   func()
}

type Option func(*Room)

// WithInboundLimit caps frames per second and burst for each session.
// A non-positive rate disables limiting.
func WithInboundLimit(perSecond float64, burst int) Option {
	return func(r *Room) {
		if perSecond <= 0 {
			r.limit = rate.Inf
			return
		}
		r.limit = rate.Limit(perSecond)
		r.burst = max(burst, 1)
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *Room) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Room) {
		if log != nil {
			r.log = log
		}
	}
}

// WithDropCallback is called for every frame discarded by the limiter.
func WithDropCallback(fn func()) Option {
	return func(r *Room) {
		r.onDrop = fn
	}
}

func NewRoom(registry *broadcast.Registry, opts ...Option) *Room {
	r := &Room{
		registry: registry,
		limit:    rate.Inf,
		burst:    1,
		clock:    clockwork.NewRealClock(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join performs the handshake, registers the session and serves it until
// the peer goes away or ctx ends.
func (r *Room) Join(ctx context.Context, h broadcast.Handshaker) error {
	s, err := r.registry.Connect(ctx, h)
	if err != nil {
		return err
	}

	ds, ok := s.(broadcast.DuplexSession)
	if !ok {
		r.registry.Disconnect(s)
		return ErrNotDuplex
	}
	return r.Serve(ctx, ds)
}

// Serve reads frames from a registered session and broadcasts them.
// The session is disconnected when Serve returns. A peer going away is not
// an error.
func (r *Room) Serve(ctx context.Context, s broadcast.DuplexSession) error {
	stop := context.AfterFunc(ctx, func() { r.registry.Disconnect(s) })
	defer stop()
	defer r.registry.Disconnect(s)

	limiter := rate.NewLimiter(r.limit, r.burst)
	log := r.log.With(logger.SessionID(s.ID()), logger.ClientID(s.ClientID()))

	for {
		text, err := s.ReadText()
		if err != nil {
			if peerGone(err) || ctx.Err() != nil {
				return nil
			}
			log.DebugContext(ctx, "read failed", logger.Error(err))
			return err
		}

		if !limiter.AllowN(r.clock.Now(), 1) {
			if r.onDrop != nil {
				r.onDrop()
			}
			log.DebugContext(ctx, "inbound frame dropped")
			continue
		}

		report := r.registry.Broadcast(ctx, Format(s.ClientID(), text))
		if report.Failed > 0 || report.Aborted > 0 {
			log.DebugContext(ctx, "broadcast partially failed",
				slog.Int("delivered", report.Delivered),
				slog.Int("failed", report.Failed),
				slog.Int("aborted", report.Aborted))
		}
	}
}

// Format renders the line every session receives for one inbound frame.
func Format(clientID, text string) string {
	return fmt.Sprintf("%s: %s", clientID, text)
}

func peerGone(err error) bool {
	return errors.Is(err, broadcast.ErrSessionClosed) ||
		websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived,
			websocket.CloseAbnormalClosure)
}
