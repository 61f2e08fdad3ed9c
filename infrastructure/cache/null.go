package cache

import (
	"context"
	"time"

	"github.com/mcb/mcp-context-browser/domain/provider"
)

// NullCache stores nothing and misses on every read. Selected only by
// explicit configuration.
type NullCache struct{}

var _ provider.CacheProvider = NullCache{}

// NewNullCache creates a NullCache.
func NewNullCache() NullCache { return NullCache{} }

// BackendType identifies the backend.
func (NullCache) BackendType() string { return "null" }

// Get always misses.
func (NullCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards the value.
func (NullCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	return nil
}

// Exists always reports false.
func (NullCache) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return false, nil
}

// Delete is a no-op.
func (NullCache) Delete(ctx context.Context, namespace, key string) error { return nil }

// Clear is a no-op.
func (NullCache) Clear(ctx context.Context, namespace string) error { return nil }

// SetMultiple discards the values.
func (NullCache) SetMultiple(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error {
	return nil
}

// GetMultiple returns nothing.
func (NullCache) GetMultiple(ctx context.Context, namespace string, keys []string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}

// DeleteMultiple is a no-op.
func (NullCache) DeleteMultiple(ctx context.Context, namespace string, keys []string) error {
	return nil
}

// Increment counts from zero on every call.
func (NullCache) Increment(ctx context.Context, namespace, key string, delta int64, ttl time.Duration) (int64, error) {
	return delta, nil
}

// Stats reports an empty namespace.
func (NullCache) Stats(ctx context.Context, namespace string) (provider.CacheStats, error) {
	return provider.CacheStats{Namespace: namespace}, nil
}

// HealthCheck always succeeds.
func (NullCache) HealthCheck(ctx context.Context) error { return nil }
