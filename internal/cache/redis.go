package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	rediscache "github.com/go-redis/cache/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collections/internal/collections/engine"
)

// localCacheSize bounds the TinyLFU tier that sits in front of Redis.
const localCacheSize = 10000

const maxLocalTTL = time.Minute

type redisSnapshotCache struct {
	client redis.UniversalClient
	cache  *rediscache.Cache
	ttl    time.Duration
}

// RedisOptions configures the Redis-backed snapshot cache.
type RedisOptions struct {
	TTL time.Duration
	// DisableLocal skips the in-process TinyLFU tier.
	DisableLocal bool
}

// NewRedisSnapshotCache shares snapshots across replicas through Redis with a
// short-lived local tier. The generation counter always comes from Redis, so
// a write on one replica retires the local copies held by every other.
func NewRedisSnapshotCache(client redis.UniversalClient, opts RedisOptions) SnapshotCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}

	cacheOpts := &rediscache.Options{
		Redis:     client,
		Marshal:   json.Marshal,
		Unmarshal: json.Unmarshal,
	}
	if !opts.DisableLocal {
		cacheOpts.LocalCache = rediscache.NewTinyLFU(localCacheSize, min(ttl, maxLocalTTL))
	}

	return &redisSnapshotCache{
		client: client,
		cache:  rediscache.New(cacheOpts),
		ttl:    ttl,
	}
}

func (c *redisSnapshotCache) generation(ctx context.Context, orgID snowflake.ID) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(orgID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *redisSnapshotCache) Get(ctx context.Context, orgID snowflake.ID) (engine.Snapshot, int64, bool, error) {
	gen, err := c.generation(ctx, orgID)
	if err != nil {
		return engine.Snapshot{}, 0, false, err
	}

	var snap engine.Snapshot
	err = c.cache.Get(ctx, SnapshotKey(orgID, gen), &snap)
	if errors.Is(err, rediscache.ErrCacheMiss) {
		return engine.Snapshot{}, gen, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, gen, false, err
	}
	return snap, gen, true, nil
}

func (c *redisSnapshotCache) Set(ctx context.Context, orgID snowflake.ID, gen int64, snap engine.Snapshot) error {
	current, err := c.generation(ctx, orgID)
	if err != nil {
		return err
	}
	if current != gen {
		return nil
	}
	return c.cache.Set(&rediscache.Item{
		Ctx:   ctx,
		Key:   SnapshotKey(orgID, gen),
		Value: snap,
		TTL:   c.ttl,
	})
}

// Invalidate bumps the tenant generation and drops the retired snapshot.
func (c *redisSnapshotCache) Invalidate(ctx context.Context, orgID snowflake.ID) error {
	gen, err := c.client.Incr(ctx, GenerationKey(orgID)).Result()
	if err != nil {
		return err
	}
	err = c.cache.Delete(ctx, SnapshotKey(orgID, gen-1))
	if errors.Is(err, rediscache.ErrCacheMiss) {
		return nil
	}
	return err
}
