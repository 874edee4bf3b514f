package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

const DefaultRedisCacheTTL = 30 * time.Minute

// Read-through dataset cache shared between processes. Datasets are
// fetched from Source on miss and kept in Redis for TTL.
type RedisCache struct {
	Source DatasetReader
	Prefix string

	cache *cache.Cache[string]
}

func NewRedisCache(client *redis.Client, source DatasetReader, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRedisCacheTTL
	}

	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &RedisCache{
		Source: source,
		Prefix: "andartayo:dataset",
		cache:  cache.New[string](redisStore),
	}
}

func (c *RedisCache) cacheKey(key string, kind model.DatasetKind) string {
	return fmt.Sprintf("%s:%s:%s", c.Prefix, key, kind)
}

func (c *RedisCache) ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error) {
	cacheKey := c.cacheKey(key, kind)

	cached, err := c.cache.Get(ctx, cacheKey)
	if err == nil && cached != "" {
		var ds model.Dataset
		if err := json.Unmarshal([]byte(cached), &ds); err == nil {
			log.Debug().Str("key", cacheKey).Msg("redis dataset cache hit")
			return &ds, nil
		}
		log.Warn().Str("key", cacheKey).Msg("discarding undecodable cached dataset")
	}

	ds, err := c.Source.ReadDataset(ctx, key, kind)
	if err != nil {
		return nil, err
	}

	buf, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("marshaling dataset: %w", err)
	}
	if err := c.cache.Set(ctx, cacheKey, string(buf)); err != nil {
		// The dataset is still usable
		log.Warn().Err(err).Str("key", cacheKey).Msg("caching dataset in redis")
	}

	return ds, nil
}

// Drops a cached dataset so the next read goes to Source.
func (c *RedisCache) Invalidate(ctx context.Context, key string, kind model.DatasetKind) error {
	err := c.cache.Delete(ctx, c.cacheKey(key, kind))
	if err != nil {
		return fmt.Errorf("deleting cached dataset: %w", err)
	}
	return nil
}
