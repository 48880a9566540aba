package queue

import "time"

// Config holds the configuration for the dispatcher, promoter and workers
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	PromoteInterval    time.Duration `env:"QUEUE_PROMOTE_INTERVAL" envDefault:"1s"`
	PromoteBatchSize   int           `env:"QUEUE_PROMOTE_BATCH_SIZE" envDefault:"100"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ResultTTL          time.Duration `env:"QUEUE_RESULT_TTL" envDefault:"24h"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	MaxRetries         int8          `env:"QUEUE_MAX_RETRIES" envDefault:"0"`
	SubmitAttempts     int           `env:"QUEUE_SUBMIT_ATTEMPTS" envDefault:"3"`
	SubmitBackoff      time.Duration `env:"QUEUE_SUBMIT_BACKOFF" envDefault:"100ms"`
	Queues             []string      `env:"QUEUE_NAMES" envDefault:"default" envSeparator:","`
}
