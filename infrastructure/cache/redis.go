package cache

import (
	"context"
	"errors"
	"time"

	"districtgraph/application/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores entries in Redis under a key prefix so several
// deployments can share one database
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

var _ ports.Cache = (*RedisCache)(nil)

// OpenRedis opens a client for addr. An empty addr returns nil.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisCache creates a cache on client with keys under prefix
func NewRedisCache(client *redis.Client, prefix string, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get retrieves a value. Redis errors are logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores a value with TTL in seconds
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	return c.client.Set(ctx, c.key(key), value, time.Duration(ttl)*time.Second).Err()
}

// Delete removes values
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, c.key(k))
	}
	return c.client.Del(ctx, prefixed...).Err()
}

// Clear removes every key under the prefix
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Ping checks connectivity, used by the readiness check
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
