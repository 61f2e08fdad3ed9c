// Package resilience houses the rate limiter and the shutdown coordinator.
package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mcb/mcp-context-browser/domain/provider"
)

// Rate limiter defaults.
const (
	DefaultRateLimit  = 120
	DefaultRateWindow = time.Minute
)

// rateLimitNamespace keys distributed counters in the cache provider.
const rateLimitNamespace = "ratelimit"

// RateLimitResult is the outcome of one admission check.
type RateLimitResult struct {
	Allowed        bool  `json:"allowed"`
	Remaining      int64 `json:"remaining"`
	ResetInSeconds int64 `json:"reset_in_seconds"`
	Limit          int64 `json:"limit"`
	CurrentCount   int64 `json:"current_count"`
}

// RateLimiter admits or rejects calls per key over a fixed window.
type RateLimiter interface {
	Check(ctx context.Context, key string) (RateLimitResult, error)
}

// LocalRateLimiter is an in-process fixed-window counter.
type LocalRateLimiter struct {
	limit  int64
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count       int64
	windowStart time.Time
	lastRequest time.Time
}

var _ RateLimiter = (*LocalRateLimiter)(nil)

// NewLocalRateLimiter creates a limiter admitting limit calls per window.
func NewLocalRateLimiter(limit int64, window time.Duration) *LocalRateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &LocalRateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: map[string]*rateBucket{},
	}
}

// Check admits the call iff the key's window still has budget.
func (l *LocalRateLimiter) Check(ctx context.Context, key string) (RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	bucket, ok := l.buckets[key]
	if !ok || now.Sub(bucket.windowStart) >= l.window {
		bucket = &rateBucket{windowStart: now}
		l.buckets[key] = bucket
	}
	bucket.lastRequest = now

	resetIn := l.window - now.Sub(bucket.windowStart)
	if bucket.count >= l.limit {
		return RateLimitResult{
			Allowed:        false,
			Remaining:      0,
			ResetInSeconds: int64(math.Ceil(resetIn.Seconds())),
			Limit:          l.limit,
			CurrentCount:   bucket.count,
		}, nil
	}
	bucket.count++
	return RateLimitResult{
		Allowed:        true,
		Remaining:      l.limit - bucket.count,
		ResetInSeconds: int64(math.Ceil(resetIn.Seconds())),
		Limit:          l.limit,
		CurrentCount:   bucket.count,
	}, nil
}

// GC drops buckets idle longer than the window. Callers run it periodically.
func (l *LocalRateLimiter) GC() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastRequest) > l.window {
			delete(l.buckets, key)
		}
	}
}

// DistributedRateLimiter counts through the cache provider so every process
// sharing the backend shares the budget.
type DistributedRateLimiter struct {
	cache  provider.CacheProvider
	limit  int64
	window time.Duration
}

var _ RateLimiter = (*DistributedRateLimiter)(nil)

// NewDistributedRateLimiter creates a limiter over the cache provider's
// INCR-with-TTL counters.
func NewDistributedRateLimiter(cache provider.CacheProvider, limit int64, window time.Duration) *DistributedRateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &DistributedRateLimiter{cache: cache, limit: limit, window: window}
}

// Check increments the key's shared counter; the first increment of a window
// sets the TTL.
func (d *DistributedRateLimiter) Check(ctx context.Context, key string) (RateLimitResult, error) {
	count, err := d.cache.Increment(ctx, rateLimitNamespace, key, 1, d.window)
	if err != nil {
		return RateLimitResult{}, err
	}
	remaining := d.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:        count <= d.limit,
		Remaining:      remaining,
		ResetInSeconds: int64(math.Ceil(d.window.Seconds())),
		Limit:          d.limit,
		CurrentCount:   count,
	}, nil
}

// DisabledRateLimiter admits everything.
type DisabledRateLimiter struct{}

var _ RateLimiter = DisabledRateLimiter{}

// NewDisabledRateLimiter creates a limiter that never rejects.
func NewDisabledRateLimiter() DisabledRateLimiter { return DisabledRateLimiter{} }

// Check always allows with maximal remaining budget.
func (DisabledRateLimiter) Check(ctx context.Context, key string) (RateLimitResult, error) {
	return RateLimitResult{
		Allowed:   true,
		Remaining: math.MaxInt64,
		Limit:     math.MaxInt64,
	}, nil
}
