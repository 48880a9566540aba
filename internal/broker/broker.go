// Package broker opens the queue storage selected by QUEUE_BROKER.
package broker

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/storefront/internal/config"
	"github.com/dmitrymomot/storefront/internal/metrics"
	"github.com/dmitrymomot/storefront/pkg/httpserver"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/pg"
	"github.com/dmitrymomot/storefront/pkg/queue"
	"github.com/dmitrymomot/storefront/pkg/queue/pgstore"
	"github.com/dmitrymomot/storefront/pkg/queue/redisstore"
	"github.com/dmitrymomot/storefront/pkg/redis"
)

// Broker is an open queue storage with its readiness checks
type Broker struct {
	Kind    config.Broker
	Storage queue.Storage
	Checks  []httpserver.Check

	close func()
}

// Close releases the underlying connection
func (b *Broker) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the configured broker. Postgres schemas are migrated
// before the storage is returned.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Broker, error) {
	log = log.With(logger.Component("broker"), slog.String("broker", string(cfg.App.Broker)))

	switch cfg.App.Broker {
	case config.BrokerRedis:
		return openRedis(ctx, cfg, log)
	case config.BrokerPostgres:
		return openPostgres(ctx, cfg, log)
	case config.BrokerMemory:
		log.WarnContext(ctx, "using in-process memory broker, jobs are lost on restart")
		return &Broker{
			Kind:    config.BrokerMemory,
			Storage: queue.NewMemoryStorage(queue.WithMemoryResultTTL(cfg.Queue.ResultTTL)),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBroker, cfg.App.Broker)
	}
}

func openRedis(ctx context.Context, cfg config.Config, log *slog.Logger) (*Broker, error) {
	var hooks []goredis.Hook
	if cfg.Redis.BreakerEnabled {
		hooks = append(hooks, redis.NewCircuitBreakerHook(cfg.Redis, log,
			redis.WithBreakerStateChange(metrics.BreakerStateChange("redis"))))
	}

	client, err := redis.Connect(ctx, cfg.Redis, hooks...)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	storage, err := redisstore.New(client, redisstore.WithConfig(cfg.RedisStore))
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	log.InfoContext(ctx, "queue broker ready")
	return &Broker{
		Kind:    config.BrokerRedis,
		Storage: storage,
		Checks:  []httpserver.Check{{Name: "redis", Check: redis.Healthcheck(client)}},
		close: func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close redis client", logger.Error(err))
			}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config, log *slog.Logger) (*Broker, error) {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.InfoContext(ctx, "queue broker ready")
	return &Broker{
		Kind:    config.BrokerPostgres,
		Storage: pgstore.New(pool, pgstore.WithResultTTL(cfg.Queue.ResultTTL)),
		Checks:  []httpserver.Check{{Name: "postgres", Check: pg.Healthcheck(pool)}},
		close:   pool.Close,
	}, nil
}
