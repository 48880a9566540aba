package redis

import "time"

// Config holds the Redis connection and circuit breaker settings
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // redis://:password@localhost:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`             // connection attempts before giving up
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`            // pause between connection attempts
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`          // overall budget for Connect

	// Circuit breaker guarding every command issued through the client.
	// It trips once BreakerMinRequests requests in a BreakerInterval window
	// fail at BreakerFailureRatio or more, stays open for BreakerOpenTimeout and
	// then lets BreakerHalfOpenMax probes through.
	BreakerEnabled      bool          `env:"REDIS_BREAKER_ENABLED" envDefault:"true"`
	BreakerMinRequests  uint32        `env:"REDIS_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerFailureRatio float64       `env:"REDIS_BREAKER_FAILURE_RATIO" envDefault:"0.6"`
	BreakerInterval     time.Duration `env:"REDIS_BREAKER_INTERVAL" envDefault:"10s"`
	BreakerOpenTimeout  time.Duration `env:"REDIS_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
	BreakerHalfOpenMax  uint32        `env:"REDIS_BREAKER_HALF_OPEN_REQUESTS" envDefault:"1"`
}
