package testkit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisModule is the Redis shared by the source cache, rate snapshot and
// asynq integration tests, which flush it between runs.
type RedisModule struct {
	container testcontainers.Container
	addr      string
}

// Addr returns host:port, the form go-redis and asynq take.
func (r *RedisModule) Addr() string { return r.addr }

// Terminate stops the container. It is a no-op for an external instance.
func (r *RedisModule) Terminate(ctx context.Context) error {
	if r.container == nil {
		return nil
	}
	return r.container.Terminate(ctx)
}

// StartRedis starts a Redis container, or uses cfg.RedisAddr when set, and
// checks that it answers PING before returning.
func StartRedis(ctx context.Context, cfg *Config) (*RedisModule, error) {
	if cfg.RedisAddr != "" {
		if err := pingRedis(ctx, cfg.RedisAddr); err != nil {
			return nil, err
		}
		return &RedisModule{addr: cfg.RedisAddr}, nil
	}

	ctr, err := tcredis.Run(ctx, cfg.RedisImage)
	if err != nil {
		return nil, fmt.Errorf("start redis container: %w", err)
	}

	addr, err := ctr.Endpoint(ctx, "")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("get redis endpoint: %w", err)
	}
	if err := pingRedis(ctx, addr); err != nil {
		_ = ctr.Terminate(ctx)
		return nil, err
	}

	return &RedisModule{container: ctr, addr: addr}, nil
}

func pingRedis(ctx context.Context, addr string) error {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close() //nolint:errcheck // test helper
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return nil
}
