package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a client for cfg.ConnectionURL and pings it until the server
// answers, up to RetryAttempts times within ConnectTimeout. Hooks are added
// only after a successful ping, so startup probes never reach a breaker.
func Connect(ctx context.Context, cfg Config, hooks ...redis.Hook) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client := redis.NewClient(opts)
	attempts := max(cfg.RetryAttempts, 1)
	for i := 1; ; i++ {
		err = client.Ping(ctx).Err()
		if err == nil {
			break
		}
		if i == attempts {
			_ = client.Close()
			return nil, errors.Join(ErrRedisNotReady, err)
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	for _, h := range hooks {
		client.AddHook(h)
	}
	return client, nil
}
