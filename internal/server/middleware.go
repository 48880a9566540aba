package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

// ProcessTimeHeader carries the handler duration in seconds.
const ProcessTimeHeader = "X-Process-Time"

// Timing measures each request. The duration up to the first byte is sent in
// ProcessTimeHeader and the full duration is logged when the handler returns.
func Timing(log *slog.Logger, clock clockwork.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &timingWriter{ResponseWriter: w, clock: clock, start: clock.Now()}
			next.ServeHTTP(tw, r)

			log.InfoContext(r.Context(), "request processed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", tw.statusCode()),
				logger.Duration(clock.Since(tw.start)))
		})
	}
}

type timingWriter struct {
	http.ResponseWriter
	clock  clockwork.Clock
	start  time.Time
	status int
}

func (w *timingWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
		w.Header().Set(ProcessTimeHeader, fmt.Sprintf("%.4f", w.clock.Since(w.start).Seconds()))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *timingWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Hijack lets the WebSocket upgrade take over the connection.
func (w *timingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", w.ResponseWriter)
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *timingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *timingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
