// Package service provides the application services orchestrating indexing,
// search, and incremental sync over the infrastructure providers.
package service

import (
	"sync"
	"time"
)

// Debounce defaults.
const (
	DefaultDebounceInterval = 60 * time.Second
	debounceEntryMaxAge     = time.Hour
)

// Debouncer suppresses repeated syncs of the same path within a window.
type Debouncer struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSync map[string]time.Time
}

// NewDebouncer creates a Debouncer. A non-positive interval uses the default.
func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{
		interval: interval,
		now:      time.Now,
		lastSync: map[string]time.Time{},
	}
}

// ShouldDebounce reports whether a sync of path should be skipped because
// one completed within the interval.
func (d *Debouncer) ShouldDebounce(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastSync[path]
	if !ok {
		return false
	}
	return d.now().Sub(last) < d.interval
}

// RecordSync marks path as synced now.
func (d *Debouncer) RecordSync(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSync[path] = d.now()
}

// GC drops entries older than an hour.
func (d *Debouncer) GC() {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := d.now().Add(-debounceEntryMaxAge)
	for path, last := range d.lastSync {
		if last.Before(cutoff) {
			delete(d.lastSync, path)
		}
	}
}

// Len returns the number of tracked paths.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lastSync)
}
