package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

const redisKeyPrefix = "mcb"

// RedisCache is a namespaced TTL cache backed by Redis. Keys are laid out as
// mcb:{namespace}:{key}. Hit and miss counters are process-local; entry
// counts come from the server.
type RedisCache struct {
	client *redis.Client

	mu       sync.Mutex
	counters map[string]*redisCounters
}

type redisCounters struct {
	hits      uint64
	misses    uint64
	evictions uint64
}

var _ provider.CacheProvider = (*RedisCache)(nil)

// NewRedisCache connects to the Redis server at addr and verifies the
// connection.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	if addr == "" {
		return nil, errs.New(errs.KindConfig, "redis cache requires an address")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errs.Wrapf(errs.KindNetwork, err, "connecting to redis at %s", addr)
	}
	return &RedisCache{client: client, counters: map[string]*redisCounters{}}, nil
}

// BackendType identifies the backend.
func (c *RedisCache) BackendType() string { return "redis" }

func redisKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, namespace, key)
}

func (c *RedisCache) counter(namespace string) *redisCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	counters, ok := c.counters[namespace]
	if !ok {
		counters = &redisCounters{}
		c.counters[namespace] = counters
	}
	return counters
}

// Get returns the value for a key, or found == false on a miss.
func (c *RedisCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, redisKey(namespace, key)).Bytes()
	counters := c.counter(namespace)
	if errors.Is(err, redis.Nil) {
		c.mu.Lock()
		counters.misses++
		c.mu.Unlock()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.KindCache, "redis get", err)
	}
	c.mu.Lock()
	counters.hits++
	c.mu.Unlock()
	return value, true, nil
}

// Set stores a value with a TTL. A non-positive TTL means no expiry.
func (c *RedisCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, redisKey(namespace, key), value, ttl).Err(); err != nil {
		return errs.Wrap(errs.KindCache, "redis set", err)
	}
	return nil
}

// Exists reports whether the key is present.
func (c *RedisCache) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := c.client.Exists(ctx, redisKey(namespace, key)).Result()
	if err != nil {
		return false, errs.Wrap(errs.KindCache, "redis exists", err)
	}
	return n > 0, nil
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, namespace, key string) error {
	if err := c.client.Del(ctx, redisKey(namespace, key)).Err(); err != nil {
		return errs.Wrap(errs.KindCache, "redis delete", err)
	}
	return nil
}

// Clear removes one namespace, or every namespace when namespace is empty,
// by scanning for the matching key prefix.
func (c *RedisCache) Clear(ctx context.Context, namespace string) error {
	pattern := fmt.Sprintf("%s:%s:*", redisKeyPrefix, namespace)
	if namespace == "" {
		pattern = redisKeyPrefix + ":*"
	}
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 512 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return errs.Wrap(errs.KindCache, "redis clear", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errs.Wrap(errs.KindCache, "redis scan", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return errs.Wrap(errs.KindCache, "redis clear", err)
		}
	}
	return nil
}

// SetMultiple stores several values with a shared TTL in one pipeline.
func (c *RedisCache) SetMultiple(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	pipe := c.client.Pipeline()
	for key, value := range values {
		pipe.Set(ctx, redisKey(namespace, key), value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.KindCache, "redis set multiple", err)
	}
	return nil
}

// GetMultiple returns the present subset of the keys.
func (c *RedisCache) GetMultiple(ctx context.Context, namespace string, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = redisKey(namespace, key)
	}
	values, err := c.client.MGet(ctx, fullKeys...).Result()
	if err != nil {
		return nil, errs.Wrap(errs.KindCache, "redis mget", err)
	}
	result := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// DeleteMultiple removes several keys.
func (c *RedisCache) DeleteMultiple(ctx context.Context, namespace string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = redisKey(namespace, key)
	}
	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return errs.Wrap(errs.KindCache, "redis delete multiple", err)
	}
	return nil
}

// Increment atomically adds delta to a counter, setting the TTL only when
// the key is created by this call.
func (c *RedisCache) Increment(ctx context.Context, namespace, key string, delta int64, ttl time.Duration) (int64, error) {
	fullKey := redisKey(namespace, key)
	pipe := c.client.TxPipeline()
	incr := pipe.IncrBy(ctx, fullKey, delta)
	if ttl > 0 {
		pipe.ExpireNX(ctx, fullKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errs.Wrap(errs.KindCache, "redis increment", err)
	}
	return incr.Val(), nil
}

// Stats returns statistics for a namespace.
func (c *RedisCache) Stats(ctx context.Context, namespace string) (provider.CacheStats, error) {
	pattern := fmt.Sprintf("%s:%s:*", redisKeyPrefix, namespace)
	entries := 0
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return provider.CacheStats{}, errs.Wrap(errs.KindCache, "redis scan", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	counters, ok := c.counters[namespace]
	if !ok {
		counters = &redisCounters{}
	}
	total := counters.hits + counters.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(counters.hits) / float64(total)
	}
	return provider.CacheStats{
		Namespace: namespace,
		Entries:   entries,
		Hits:      counters.hits,
		Misses:    counters.misses,
		Evictions: counters.evictions,
		HitRatio:  ratio,
	}, nil
}

// HealthCheck pings the server.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.KindNetwork, "redis ping", err)
	}
	return nil
}

// Close releases the client connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
