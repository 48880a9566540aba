// Package server wires the HTTP surface: the real-time chat endpoint, the
// task submission endpoints, health checks and metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/storefront/internal/chat"
	"github.com/dmitrymomot/storefront/pkg/broadcast"
	"github.com/dmitrymomot/storefront/pkg/environment"
	"github.com/dmitrymomot/storefront/pkg/httpserver"
	"github.com/dmitrymomot/storefront/pkg/queue"
	"github.com/dmitrymomot/storefront/pkg/requestid"
)

// Dispatcher is the part of queue.Dispatcher the HTTP handlers use
type Dispatcher interface {
	Submit(ctx context.Context, operation string, payload any, mode queue.Mode, opts ...queue.SubmitOption) (uuid.UUID, error)
	Status(ctx context.Context, id uuid.UUID) (*queue.Job, error)
}

// Config holds the defaults of the task endpoints
type Config struct {
	ByeDelay     time.Duration
	GoodAfter    time.Duration
	ReadyTimeout time.Duration
}

// Server owns the router dependencies
type Server struct {
	dispatcher Dispatcher
	room       *chat.Room
	cfg        Config

	env      environment.Environment
	wsOpts   []broadcast.WebSocketOption
	checks   []httpserver.Check
	gatherer prometheus.Gatherer
	clock    clockwork.Clock
	log      *slog.Logger
}

type Option func(*Server)

func WithEnvironment(env environment.Environment) Option {
	return func(s *Server) { s.env = env }
}

// WithWebSocketOptions configures every upgraded session
func WithWebSocketOptions(opts ...broadcast.WebSocketOption) Option {
	return func(s *Server) { s.wsOpts = append(s.wsOpts, opts...) }
}

// WithReadinessChecks adds dependencies to /health/ready
func WithReadinessChecks(checks ...httpserver.Check) Option {
	return func(s *Server) { s.checks = append(s.checks, checks...) }
}

// WithGatherer replaces the default Prometheus registry behind /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func New(dispatcher Dispatcher, room *chat.Room, cfg Config, opts ...Option) *Server {
	s := &Server{
		dispatcher: dispatcher,
		room:       room,
		cfg:        cfg,
		env:        environment.Development,
		gatherer:   prometheus.DefaultGatherer,
		clock:      clockwork.NewRealClock(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(environment.Middleware(s.env))
	r.Use(requestid.Middleware)
	r.Use(Timing(s.log, s.clock))
	r.Use(middleware.Recoverer)

	r.Get("/ws/{client_id}", s.handleChat)

	r.Route("/v1/tests", func(r chi.Router) {
		r.Get("/hello", s.handleHello)
		r.Get("/bye", s.handleBye)
		r.Get("/good", s.handleGood)
		r.Get("/jobs/{id}", s.handleJob)
	})

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(s.log, s.cfg.ReadyTimeout, s.checks...))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}
