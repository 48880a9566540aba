// Command server runs the HTTP API: the real-time chat channel and the task
// submission endpoints. With QUEUE_BROKER=memory it also executes the jobs.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/storefront/internal/broker"
	"github.com/dmitrymomot/storefront/internal/chat"
	"github.com/dmitrymomot/storefront/internal/config"
	"github.com/dmitrymomot/storefront/internal/jobs"
	"github.com/dmitrymomot/storefront/internal/metrics"
	"github.com/dmitrymomot/storefront/internal/server"
	"github.com/dmitrymomot/storefront/pkg/broadcast"
	"github.com/dmitrymomot/storefront/pkg/httpserver"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(
		logger.WithEnvironment(cfg.App.Environment(), cfg.App.Name),
		logger.WithLevelName(cfg.App.LogLevel),
		logger.WithContextExtractors(requestid.Extractor),
	)
	logger.SetAsDefault(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	b, err := broker.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	dispatcher, err := jobs.NewDispatcher(b.Storage, cfg.Queue, log)
	if err != nil {
		return err
	}

	registry := broadcast.NewRegistry(
		broadcast.WithSendTimeout(cfg.Broadcast.SendTimeout),
		broadcast.WithRegistryLogger(log.With(logger.Component("broadcast"))),
		broadcast.WithSizeCallback(metrics.ObserveSessions),
		broadcast.WithSendFailureCallback(metrics.ObserveSendFailure),
	)
	defer func() {
		if err := registry.Close(); err != nil {
			log.Error("failed to close session registry", logger.Error(err))
		}
	}()

	room := chat.NewRoom(registry,
		chat.WithInboundLimit(cfg.App.InboundRate, cfg.App.InboundBurst),
		chat.WithDropCallback(metrics.InboundFramesDropped.Inc),
		chat.WithLogger(log.With(logger.Component("chat"))),
	)

	srv := server.New(dispatcher, room,
		server.Config{
			ByeDelay:     cfg.App.ByeDelay,
			GoodAfter:    cfg.App.GoodAfter,
			ReadyTimeout: cfg.App.ReadyTimeout,
		},
		server.WithEnvironment(cfg.App.Environment()),
		server.WithWebSocketOptions(broadcast.WithWebSocketConfig(cfg.Broadcast)),
		server.WithReadinessChecks(b.Checks...),
		server.WithLogger(log),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpserver.New(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, srv.Routes())
	})

	// The memory broker lives in this process, so nobody else can run its jobs.
	if b.Kind == config.BrokerMemory {
		rt, err := jobs.NewRuntime(b.Storage, dispatcher, cfg, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return rt.Run(ctx) })
	}

	return g.Wait()
}
