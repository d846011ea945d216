package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"pixelgrid/internal/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var RedisModule = fx.Module("redis",
	fx.Provide(
		NewRedisClient,
	),
)

// NewRedisClient connects lazily. An unreachable server only degrades rate limiting
// unless the redis document store is selected.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) redis.UniversalClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				if cfg.Store.Driver == config.StoreDriverRedis {
					return err
				}
				slog.Warn("redis unreachable, rate limiting will fail open", "addr", cfg.Redis.Addr, "error", err.Error())
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}
