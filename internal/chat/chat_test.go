package chat_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/internal/chat"
	"github.com/dmitrymomot/storefront/pkg/broadcast"
)

func newRegistry() *broadcast.Registry {
	return broadcast.NewRegistry(
		broadcast.WithSendTimeout(time.Second),
		broadcast.WithRegistryLogger(slog.New(slog.DiscardHandler)))
}

func serve(t *testing.T, ctx context.Context, room *chat.Room, s broadcast.DuplexSession) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- room.Serve(ctx, s) }()
	return done
}

func TestRoom_ChatScenario(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := newRegistry()
	room := chat.NewRoom(reg, chat.WithLogger(slog.New(slog.DiscardHandler)))

	a := broadcast.NewMemorySession("A")
	b := broadcast.NewMemorySession("B")
	require.NoError(t, reg.Add(a))
	require.NoError(t, reg.Add(b))

	doneA := serve(t, ctx, room, a)
	doneB := serve(t, ctx, room, b)

	require.NoError(t, a.Push("hi"))
	require.Eventually(t, func() bool {
		return len(a.Messages()) == 1 && len(b.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"A: hi"}, a.Messages())
	assert.Equal(t, []string{"A: hi"}, b.Messages())

	require.NoError(t, b.Close())
	select {
	case err := <-doneB:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("serve did not return after the session closed")
	}
	assert.Equal(t, 1, reg.Len())

	require.NoError(t, a.Push("again"))
	require.Eventually(t, func() bool {
		return len(a.Messages()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"A: hi", "A: again"}, a.Messages())
	assert.Equal(t, []string{"A: hi"}, b.Messages())

	cancel()
	select {
	case err := <-doneA:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, broadcast.StateClosed, a.State())
}

func TestRoom_InboundLimit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dropped atomic.Int32
	clock := clockwork.NewFakeClock()
	reg := newRegistry()
	room := chat.NewRoom(reg,
		chat.WithClock(clock),
		chat.WithInboundLimit(1, 2),
		chat.WithDropCallback(func() { dropped.Add(1) }),
		chat.WithLogger(slog.New(slog.DiscardHandler)))

	s := broadcast.NewMemorySession("flood")
	require.NoError(t, reg.Add(s))
	serve(t, ctx, room, s)

	for range 5 {
		require.NoError(t, s.Push("x"))
	}
	require.Eventually(t, func() bool {
		return dropped.Load() == 3
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, s.Messages(), 2)

	clock.Advance(time.Second)
	require.NoError(t, s.Push("later"))
	require.Eventually(t, func() bool {
		return len(s.Messages()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "flood: later", s.Messages()[2])
}

func TestRoom_Join(t *testing.T) {
	t.Parallel()

	t.Run("serves the handshaked session", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		reg := newRegistry()
		room := chat.NewRoom(reg, chat.WithLogger(slog.New(slog.DiscardHandler)))
		s := broadcast.NewMemorySession("joiner")

		done := make(chan error, 1)
		go func() {
			done <- room.Join(ctx, broadcast.HandshakerFunc(func(context.Context) (broadcast.Session, error) {
				return s, nil
			}))
		}()

		require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 5*time.Millisecond)
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("join did not return after cancel")
		}
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("handshake failure", func(t *testing.T) {
		t.Parallel()

		reg := newRegistry()
		room := chat.NewRoom(reg)
		boom := errors.New("boom")

		err := room.Join(context.Background(), broadcast.HandshakerFunc(func(context.Context) (broadcast.Session, error) {
			return nil, boom
		}))
		assert.ErrorIs(t, err, broadcast.ErrHandshakeFailed)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("send-only session is rejected", func(t *testing.T) {
		t.Parallel()

		reg := newRegistry()
		room := chat.NewRoom(reg)
		s := sendOnly{broadcast.NewMemorySession("mute")}

		err := room.Join(context.Background(), broadcast.HandshakerFunc(func(context.Context) (broadcast.Session, error) {
			return s, nil
		}))
		assert.ErrorIs(t, err, chat.ErrNotDuplex)
		assert.Equal(t, 0, reg.Len())
		assert.Equal(t, broadcast.StateClosed, s.State())
	})
}

func TestFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "42: hello", chat.Format("42", "hello"))
	assert.Equal(t, "A: ", chat.Format("A", ""))
}

// sendOnly hides the inbound side of a memory session
type sendOnly struct {
	m *broadcast.MemorySession
}

func (s sendOnly) ID() string                                  { return s.m.ID() }
func (s sendOnly) Send(ctx context.Context, text string) error { return s.m.Send(ctx, text) }
func (s sendOnly) Close() error                                { return s.m.Close() }
func (s sendOnly) State() broadcast.SessionState               { return s.m.State() }
