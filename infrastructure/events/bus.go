// Package events provides the in-process event bus connecting the services.
// Delivery is fan-out with a bounded buffer per subscriber; when a
// subscriber falls behind, its oldest pending event is dropped so
// publishers never block.
package events

import (
	"log/slog"
	"sync"

	"github.com/mcb/mcp-context-browser/domain/event"
)

// DefaultBufferSize is the per-subscriber pending event budget.
const DefaultBufferSize = 100

type subscription struct {
	types map[event.Type]struct{}
	ch    chan event.Event
}

func (s *subscription) wants(t event.Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus is a bounded fan-out event bus.
type Bus struct {
	mu       sync.Mutex
	subs     map[int]*subscription
	nextID   int
	capacity int
	closed   bool
	dropped  uint64
	logger   *slog.Logger
}

var _ event.Bus = (*Bus)(nil)
var _ event.Subscriber = (*Bus)(nil)

// NewBus creates a Bus. A non-positive capacity uses DefaultBufferSize.
func NewBus(capacity int, logger *slog.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:     map[int]*subscription{},
		capacity: capacity,
		logger:   logger,
	}
}

// Subscribe registers a subscriber for the given event types, or for every
// type when none are named. The returned cancel function removes the
// subscription and closes the channel.
func (b *Bus) Subscribe(types ...event.Type) (<-chan event.Event, func()) {
	sub := &subscription{ch: make(chan event.Event, b.capacity)}
	if len(types) > 0 {
		sub.types = make(map[event.Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber. It never blocks:
// a full subscriber buffer sheds its oldest pending event first.
func (b *Bus) Publish(evt event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !sub.wants(evt.Type) {
			continue
		}
		select {
		case sub.ch <- evt:
			continue
		default:
		}
		// Buffer full: drop the oldest, then retry once.
		select {
		case dropped := <-sub.ch:
			b.dropped++
			b.logger.Warn("event bus dropped oldest pending event",
				slog.String("type", string(dropped.Type)))
		default:
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Dropped returns how many events have been shed across all subscribers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close removes every subscription and closes their channels. Publishing
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
