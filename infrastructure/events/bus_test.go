package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/domain/event"
)

func TestBus_DeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus(10, nil)
	defer bus.Close()

	syncCh, cancelSync := bus.Subscribe(event.TypeSyncCompleted)
	defer cancelSync()
	allCh, cancelAll := bus.Subscribe()
	defer cancelAll()

	bus.Publish(event.NewShutdown(time.Now(), "test"))
	bus.Publish(event.NewSyncCompleted(time.Now(), event.SyncCompleted{Collection: "default"}))

	got := <-syncCh
	assert.Equal(t, event.TypeSyncCompleted, got.Type)
	select {
	case extra := <-syncCh:
		t.Fatalf("unexpected second event %v on filtered subscription", extra.Type)
	default:
	}

	assert.Equal(t, event.TypeShutdown, (<-allCh).Type)
	assert.Equal(t, event.TypeSyncCompleted, (<-allCh).Type)
}

func TestBus_DropsOldestWhenFull(t *testing.T) {
	bus := NewBus(2, nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe(event.TypeConfigChanged)
	defer cancel()

	now := time.Now()
	bus.Publish(event.NewConfigChanged(now, "first"))
	bus.Publish(event.NewConfigChanged(now, "second"))
	bus.Publish(event.NewConfigChanged(now, "third"))

	require.EqualValues(t, 1, bus.Dropped())
	assert.Equal(t, "second", (<-ch).ConfigChanged.Section)
	assert.Equal(t, "third", (<-ch).ConfigChanged.Section)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus(1, nil)
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(event.NewShutdown(time.Now(), "flood"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus(4, nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	bus.Publish(event.NewShutdown(time.Now(), "late"))
}

func TestBus_CloseStopsDelivery(t *testing.T) {
	bus := NewBus(4, nil)
	ch, _ := bus.Subscribe()

	bus.Close()
	bus.Publish(event.NewShutdown(time.Now(), "after close"))

	_, open := <-ch
	assert.False(t, open)
}
