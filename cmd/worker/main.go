// Command worker promotes scheduled jobs, executes ready ones and submits
// the periodic tasks. Several workers may share one broker.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/storefront/internal/broker"
	"github.com/dmitrymomot/storefront/internal/config"
	"github.com/dmitrymomot/storefront/internal/jobs"
	"github.com/dmitrymomot/storefront/pkg/httpserver"
	"github.com/dmitrymomot/storefront/pkg/logger"
)

var errMemoryBroker = errors.New("the memory broker only works inside the server process")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(
		logger.WithEnvironment(cfg.App.Environment(), cfg.App.Name+"-worker"),
		logger.WithLevelName(cfg.App.LogLevel),
	)
	logger.SetAsDefault(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Error("worker stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.App.Broker == config.BrokerMemory {
		return errMemoryBroker
	}

	b, err := broker.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	dispatcher, err := jobs.NewDispatcher(b.Storage, cfg.Queue, log)
	if err != nil {
		return err
	}

	rt, err := jobs.NewRuntime(b.Storage, dispatcher, cfg, log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Run(ctx) })

	// Probes and metrics for the worker process.
	g.Go(func() error {
		srv := httpserver.New(cfg.HTTP,
			httpserver.WithAddr(cfg.App.WorkerAddr),
			httpserver.WithLogger(log))
		return srv.Run(ctx, probes(b, cfg, log))
	})

	return g.Wait()
}

func probes(b *broker.Broker, cfg config.Config, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, cfg.App.ReadyTimeout, b.Checks...))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
