package provider

import (
	"context"
	"time"
)

// CacheStats summarizes one cache namespace.
type CacheStats struct {
	Namespace string  `json:"namespace"`
	Entries   int     `json:"entries"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
}

// CacheProvider is a namespaced TTL key-value cache. Namespaces partition
// the keyspace: clearing one namespace never touches another.
type CacheProvider interface {
	// Get returns the value for a key, or found == false on a miss.
	Get(ctx context.Context, namespace, key string) (value []byte, found bool, err error)

	// Set stores a value with a TTL. A non-positive TTL means no expiry.
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error

	// Exists reports whether the key is present and unexpired.
	Exists(ctx context.Context, namespace, key string) (bool, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Clear removes one namespace, or every namespace when namespace is empty.
	Clear(ctx context.Context, namespace string) error

	// SetMultiple stores several values with a shared TTL.
	SetMultiple(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error

	// GetMultiple returns the present, unexpired subset of the keys.
	GetMultiple(ctx context.Context, namespace string, keys []string) (map[string][]byte, error)

	// DeleteMultiple removes several keys.
	DeleteMultiple(ctx context.Context, namespace string, keys []string) error

	// Increment atomically adds delta to a counter key, creating it with the
	// TTL when absent, and returns the new value. Used by the distributed
	// rate limiter.
	Increment(ctx context.Context, namespace, key string, delta int64, ttl time.Duration) (int64, error)

	// Stats returns statistics for a namespace.
	Stats(ctx context.Context, namespace string) (CacheStats, error)

	// BackendType identifies the backend (memory, redis, null).
	BackendType() string

	// HealthCheck probes the backend.
	HealthCheck(ctx context.Context) error
}
