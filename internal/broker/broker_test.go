package broker_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/internal/broker"
	"github.com/dmitrymomot/storefront/internal/config"
	"github.com/dmitrymomot/storefront/pkg/pg"
	"github.com/dmitrymomot/storefront/pkg/queue"
	"github.com/dmitrymomot/storefront/pkg/redis"
)

var discard = slog.New(slog.DiscardHandler)

func TestOpen_Memory(t *testing.T) {
	t.Parallel()

	b, err := broker.Open(context.Background(), config.Config{
		App:   config.App{Broker: config.BrokerMemory},
		Queue: queue.Config{ResultTTL: time.Hour},
	}, discard)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.BrokerMemory, b.Kind)
	assert.IsType(t, &queue.MemoryStorage{}, b.Storage)
	assert.Empty(t, b.Checks)
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr error
	}{
		{
			name:    "unknown broker",
			cfg:     config.Config{App: config.App{Broker: "kafka"}},
			wantErr: config.ErrUnknownBroker,
		},
		{
			name:    "redis without url",
			cfg:     config.Config{App: config.App{Broker: config.BrokerRedis}},
			wantErr: redis.ErrEmptyConnectionURL,
		},
		{
			name:    "postgres without url",
			cfg:     config.Config{App: config.App{Broker: config.BrokerPostgres}},
			wantErr: pg.ErrEmptyConnectionString,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := broker.Open(context.Background(), tt.cfg, discard)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, b)
		})
	}
}
