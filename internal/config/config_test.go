package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/internal/config"
	pkgconfig "github.com/dmitrymomot/storefront/pkg/config"
	"github.com/dmitrymomot/storefront/pkg/environment"
	"github.com/dmitrymomot/storefront/pkg/pg"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr error
	}{
		{name: "redis", cfg: config.Config{App: config.App{Broker: config.BrokerRedis}}},
		{name: "memory", cfg: config.Config{App: config.App{Broker: config.BrokerMemory}}},
		{
			name: "postgres with url",
			cfg: config.Config{
				App:      config.App{Broker: config.BrokerPostgres},
				Postgres: pg.Config{ConnectionString: "postgres://localhost/queue"},
			},
		},
		{
			name:    "postgres without url",
			cfg:     config.Config{App: config.App{Broker: config.BrokerPostgres}},
			wantErr: pg.ErrEmptyConnectionString,
		},
		{
			name:    "unknown environment",
			cfg:     config.Config{App: config.App{Broker: config.BrokerMemory, Env: "qa"}},
			wantErr: environment.ErrUnknownEnvironment,
		},
		{
			name:    "unknown broker",
			cfg:     config.Config{App: config.App{Broker: "kafka"}},
			wantErr: config.ErrUnknownBroker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApp_Environment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, environment.Production, config.App{Env: "prod"}.Environment())
	assert.Equal(t, environment.Development, config.App{}.Environment())
	assert.Equal(t, environment.Development, config.App{Env: "qa"}.Environment())
}

func TestLoad(t *testing.T) {
	pkgconfig.Reset()
	t.Cleanup(pkgconfig.Reset)
	t.Setenv("APP_ENV", "stage")
	t.Setenv("QUEUE_BROKER", "memory")
	t.Setenv("TASK_PERIODIC_INTERVAL", "30s")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.BrokerMemory, cfg.App.Broker)
	assert.Equal(t, environment.Staging, cfg.App.Environment())
	assert.Equal(t, 30*time.Second, cfg.App.PeriodicEvery)
	assert.Equal(t, "Test text message", cfg.App.PeriodicMessage)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)

	pkgconfig.Reset()
	t.Setenv("QUEUE_BROKER", "kafka")
	_, err = config.Load()
	assert.ErrorIs(t, err, config.ErrUnknownBroker)
}
