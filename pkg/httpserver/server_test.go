package httpserver_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/httpserver"
)

func listen(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ":8080", httpserver.New(httpserver.Config{}).Addr())
	assert.Equal(t, ":9000", httpserver.New(httpserver.Config{Addr: ":8081"}, httpserver.WithAddr(":9000")).Addr())
	assert.Equal(t, ":8081", httpserver.New(httpserver.Config{Addr: ":8081"}, httpserver.WithAddr("")).Addr())
}

func TestServer_ServeUntilCancelled(t *testing.T) {
	t.Parallel()

	ln := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- httpserver.New(httpserver.Config{}).Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ShutdownTimeout(t *testing.T) {
	t.Parallel()

	ln := listen(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := httpserver.New(httpserver.Config{}, httpserver.WithShutdownTimeout(50*time.Millisecond))
	go func() {
		done <- srv.Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			<-release
		}))
	}()

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	<-entered
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, httpserver.ErrShutdown)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunListenError(t *testing.T) {
	t.Parallel()

	ln := listen(t)
	defer ln.Close()

	err := httpserver.New(httpserver.Config{Addr: ln.Addr().String()}).Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}
