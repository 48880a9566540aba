// Package redis provides helpers for connecting to a Redis server.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which retries the initial connection and installs client hooks
//     once the server answers.
//   - CircuitBreakerHook, a redis.Hook backed by sony/gobreaker that fails
//     commands fast while Redis is down instead of piling up timeouts.
//   - Healthcheck, a readiness probe for HTTP health endpoints.
//
// Configuration is described by the Config struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	hook := redis.NewCircuitBreakerHook(cfg, logger)
//
//	client, err := redis.Connect(ctx, cfg, hook)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ready := redis.Healthcheck(client)
//
// # Error Handling
//
// Connect returns ErrFailedToParseRedisConnString for malformed URLs and
// ErrRedisNotReady once every attempt failed. Commands rejected by an open
// breaker return an error wrapping ErrCircuitOpen.
package redis
