package redisstore

import "time"

// Config holds the Redis broker settings
type Config struct {
	Prefix    string        `env:"QUEUE_REDIS_PREFIX" envDefault:"{queue}"`
	ResultTTL time.Duration `env:"QUEUE_RESULT_TTL" envDefault:"24h"`
}
