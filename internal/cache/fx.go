package cache

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collections/internal/clock"
	"github.com/smallbiznis/collections/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewSnapshotCache),
)

// NewRedisClient returns nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable, cache lookups will fall through", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

type SnapshotCacheParams struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

func NewSnapshotCache(p SnapshotCacheParams) SnapshotCache {
	if p.Redis != nil {
		p.Log.Info("workflow snapshot cache backed by redis", zap.Duration("ttl", p.Config.SnapshotTTL))
		return NewRedisSnapshotCache(p.Redis, RedisOptions{TTL: p.Config.SnapshotTTL})
	}
	p.Log.Info("workflow snapshot cache in memory", zap.Duration("ttl", p.Config.SnapshotTTL))
	return NewMemorySnapshotCache(p.Clock, p.Config.SnapshotTTL)
}
