// Package cache provides the namespaced TTL cache backends: an in-process
// map, a Redis adapter, and a null cache. Backends are selected by name
// through the factory.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mcb/mcp-context-browser/domain/provider"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type namespaceData struct {
	entries   map[string]memoryEntry
	hits      uint64
	misses    uint64
	evictions uint64
}

// MemoryCache is an in-process namespaced TTL cache. Expiry is lazy: entries
// are dropped when a read or sweep finds them stale.
type MemoryCache struct {
	mu         sync.RWMutex
	namespaces map[string]*namespaceData
	now        func() time.Time
}

var _ provider.CacheProvider = (*MemoryCache)(nil)

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		namespaces: map[string]*namespaceData{},
		now:        time.Now,
	}
}

// BackendType identifies the backend.
func (c *MemoryCache) BackendType() string { return "memory" }

func (c *MemoryCache) namespace(name string) *namespaceData {
	ns, ok := c.namespaces[name]
	if !ok {
		ns = &namespaceData{entries: map[string]memoryEntry{}}
		c.namespaces[name] = ns
	}
	return ns
}

// Get returns the value for a key, or found == false on a miss.
func (c *MemoryCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns := c.namespace(namespace)
	entry, ok := ns.entries[key]
	if !ok {
		ns.misses++
		return nil, false, nil
	}
	if entry.expired(c.now()) {
		delete(ns.entries, key)
		ns.evictions++
		ns.misses++
		return nil, false, nil
	}
	ns.hits++
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Set stores a value. A non-positive TTL means no expiry.
func (c *MemoryCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespace(namespace).entries[key] = entry
	return nil
}

// Exists reports whether the key is present and unexpired.
func (c *MemoryCache) Exists(ctx context.Context, namespace, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns := c.namespace(namespace)
	entry, ok := ns.entries[key]
	if !ok {
		return false, nil
	}
	if entry.expired(c.now()) {
		delete(ns.entries, key)
		ns.evictions++
		return false, nil
	}
	return true, nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(ctx context.Context, namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.namespace(namespace).entries, key)
	return nil
}

// Clear removes one namespace, or every namespace when namespace is empty.
// Clearing one namespace never touches another.
func (c *MemoryCache) Clear(ctx context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if namespace == "" {
		c.namespaces = map[string]*namespaceData{}
		return nil
	}
	delete(c.namespaces, namespace)
	return nil
}

// SetMultiple stores several values with a shared TTL.
func (c *MemoryCache) SetMultiple(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error {
	for key, value := range values {
		if err := c.Set(ctx, namespace, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// GetMultiple returns the present, unexpired subset of the keys.
func (c *MemoryCache) GetMultiple(ctx context.Context, namespace string, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, found, err := c.Get(ctx, namespace, key)
		if err != nil {
			return nil, err
		}
		if found {
			result[key] = value
		}
	}
	return result, nil
}

// DeleteMultiple removes several keys.
func (c *MemoryCache) DeleteMultiple(ctx context.Context, namespace string, keys []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns := c.namespace(namespace)
	for _, key := range keys {
		delete(ns.entries, key)
	}
	return nil
}

// Increment atomically adds delta to a counter, creating it with the TTL
// when absent or expired, and returns the new value.
func (c *MemoryCache) Increment(ctx context.Context, namespace, key string, delta int64, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns := c.namespace(namespace)
	now := c.now()

	var current int64
	entry, ok := ns.entries[key]
	if ok && !entry.expired(now) {
		current = decodeCounter(entry.value)
		current += delta
		entry.value = encodeCounter(current)
		ns.entries[key] = entry
		return current, nil
	}
	if ok {
		ns.evictions++
	}
	current = delta
	fresh := memoryEntry{value: encodeCounter(current)}
	if ttl > 0 {
		fresh.expiresAt = now.Add(ttl)
	}
	ns.entries[key] = fresh
	return current, nil
}

// Stats returns statistics for a namespace.
func (c *MemoryCache) Stats(ctx context.Context, namespace string) (provider.CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns := c.namespace(namespace)
	now := c.now()
	live := 0
	for _, entry := range ns.entries {
		if !entry.expired(now) {
			live++
		}
	}
	total := ns.hits + ns.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(ns.hits) / float64(total)
	}
	return provider.CacheStats{
		Namespace: namespace,
		Entries:   live,
		Hits:      ns.hits,
		Misses:    ns.misses,
		Evictions: ns.evictions,
		HitRatio:  ratio,
	}, nil
}

// HealthCheck always succeeds for the in-process backend.
func (c *MemoryCache) HealthCheck(ctx context.Context) error { return nil }
