// Package config composes the per-package settings of both binaries.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/storefront/pkg/broadcast"
	pkgconfig "github.com/dmitrymomot/storefront/pkg/config"
	"github.com/dmitrymomot/storefront/pkg/environment"
	"github.com/dmitrymomot/storefront/pkg/httpserver"
	"github.com/dmitrymomot/storefront/pkg/pg"
	"github.com/dmitrymomot/storefront/pkg/queue"
	"github.com/dmitrymomot/storefront/pkg/queue/redisstore"
	"github.com/dmitrymomot/storefront/pkg/redis"
)

// Broker selects the queue storage backend
type Broker string

const (
	BrokerRedis    Broker = "redis"
	BrokerPostgres Broker = "postgres"
	BrokerMemory   Broker = "memory"
)

var ErrUnknownBroker = errors.New("unknown queue broker")

// App holds the service-level settings
type App struct {
	Name     string `env:"APP_NAME" envDefault:"storefront"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	Broker       Broker        `env:"QUEUE_BROKER" envDefault:"redis"`
	ReadyTimeout time.Duration `env:"HEALTH_READY_TIMEOUT" envDefault:"2s"`

	// probes and metrics of cmd/worker
	WorkerAddr string `env:"WORKER_HTTP_ADDR" envDefault:":8081"`

	// tasks.message handler
	MessageTaskDelay time.Duration `env:"TASK_MESSAGE_DELAY" envDefault:"5s"`
	PeriodicEvery    time.Duration `env:"TASK_PERIODIC_INTERVAL" envDefault:"60s"`
	PeriodicMessage  string        `env:"TASK_PERIODIC_MESSAGE" envDefault:"Test text message"`

	// /v1/tests/bye and /v1/tests/good defaults
	ByeDelay  time.Duration `env:"TESTS_BYE_DELAY" envDefault:"5m"`
	GoodAfter time.Duration `env:"TESTS_GOOD_AFTER" envDefault:"10m"`

	// inbound frames per second and burst for one real-time connection
	InboundRate  float64 `env:"WS_INBOUND_RATE" envDefault:"10"`
	InboundBurst int     `env:"WS_INBOUND_BURST" envDefault:"20"`
}

// Environment returns the parsed APP_ENV. Validate rejects unknown values.
func (a App) Environment() environment.Environment {
	env, err := environment.Parse(a.Env)
	if err != nil {
		return environment.Development
	}
	return env
}

// Config is everything either binary needs
type Config struct {
	App        App
	HTTP       httpserver.Config
	Queue      queue.Config
	Broadcast  broadcast.Config
	Redis      redis.Config
	RedisStore redisstore.Config
	Postgres   pg.Config
}

// Load reads every section from the environment (and .env when present)
func Load() (Config, error) {
	var cfg Config
	for _, load := range []func() error{
		func() error { return pkgconfig.Load(&cfg.App) },
		func() error { return pkgconfig.Load(&cfg.HTTP) },
		func() error { return pkgconfig.Load(&cfg.Queue) },
		func() error { return pkgconfig.Load(&cfg.Broadcast) },
		func() error { return pkgconfig.Load(&cfg.Redis) },
		func() error { return pkgconfig.Load(&cfg.RedisStore) },
		func() error { return pkgconfig.Load(&cfg.Postgres) },
	} {
		if err := load(); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints env tags cannot express
func (c Config) Validate() error {
	if _, err := environment.Parse(c.App.Env); err != nil {
		return err
	}

	switch c.App.Broker {
	case BrokerRedis, BrokerMemory:
	case BrokerPostgres:
		if c.Postgres.ConnectionString == "" {
			return fmt.Errorf("QUEUE_BROKER=postgres: %w", pg.ErrEmptyConnectionString)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBroker, c.App.Broker)
	}
	return nil
}
