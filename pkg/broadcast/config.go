package broadcast

import "time"

// Config holds registry and WebSocket transport settings
type Config struct {
	SendTimeout    time.Duration `env:"BROADCAST_SEND_TIMEOUT" envDefault:"5s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"5s"`
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	PongTimeout    time.Duration `env:"WS_PONG_TIMEOUT" envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096"`
	SendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"16"`
	AllowedOrigins []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}
