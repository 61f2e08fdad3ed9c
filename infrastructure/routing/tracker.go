package routing

import (
	"context"
	"sync"
	"time"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// drainPollInterval is the granularity of WaitForDrain.
const drainPollInterval = 100 * time.Millisecond

// ConnectionTracker counts in-flight calls per provider so shutdown can wait
// for them to drain before tearing providers down.
type ConnectionTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewConnectionTracker creates an empty tracker.
func NewConnectionTracker() *ConnectionTracker {
	return &ConnectionTracker{counts: map[string]int{}}
}

// ConnectionGuard marks one in-flight call. Release is idempotent and must
// be called on every exit path.
type ConnectionGuard struct {
	tracker    *ConnectionTracker
	providerID string
	once       sync.Once
}

// Release decrements the in-flight counter.
func (g *ConnectionGuard) Release() {
	g.once.Do(func() {
		g.tracker.mu.Lock()
		defer g.tracker.mu.Unlock()
		if g.tracker.counts[g.providerID] > 0 {
			g.tracker.counts[g.providerID]--
		}
	})
}

// Track increments the provider's in-flight counter and returns the guard
// that undoes it.
func (t *ConnectionTracker) Track(providerID string) *ConnectionGuard {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[providerID]++
	return &ConnectionGuard{tracker: t, providerID: providerID}
}

// Active returns the in-flight count for one provider.
func (t *ConnectionTracker) Active(providerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[providerID]
}

// TotalActive returns the in-flight count across all providers.
func (t *ConnectionTracker) TotalActive() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// WaitForDrain polls until the provider's counter reaches zero or the
// timeout elapses.
func (t *ConnectionTracker) WaitForDrain(ctx context.Context, providerID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if t.Active(providerID) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errs.Newf(errs.KindTimeout, "provider %q did not drain within %s", providerID, timeout)
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.KindTimeout, "drain wait cancelled", ctx.Err())
		case <-time.After(drainPollInterval):
		}
	}
}

// WaitForDrainAll polls until every counter reaches zero or the timeout
// elapses.
func (t *ConnectionTracker) WaitForDrainAll(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if t.TotalActive() == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errs.Newf(errs.KindTimeout, "connections did not drain within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.KindTimeout, "drain wait cancelled", ctx.Err())
		case <-time.After(drainPollInterval):
		}
	}
}

// CloseAll force-resets a provider's counter. Used only after a drain
// deadline has passed.
func (t *ConnectionTracker) CloseAll(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[providerID] = 0
}
