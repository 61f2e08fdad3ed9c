package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/event"
	"github.com/mcb/mcp-context-browser/infrastructure/events"
)

func TestShutdownCoordinator_CancelsTasksAndWaits(t *testing.T) {
	c := NewShutdownCoordinator(context.Background(), nil, nil)

	var stopped bool
	var mu sync.Mutex
	err := c.Spawn("worker", func(ctx context.Context) {
		<-ctx.Done()
		mu.Lock()
		stopped = true
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.TaskCount())

	require.NoError(t, c.Shutdown("test", 2*time.Second))
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, stopped)
	assert.Zero(t, c.TaskCount())
}

func TestShutdownCoordinator_BroadcastsShutdownEvent(t *testing.T) {
	bus := events.NewBus(0, nil)
	defer bus.Close()
	ch, cancel := bus.Subscribe(event.TypeShutdown)
	defer cancel()

	c := NewShutdownCoordinator(context.Background(), bus, nil)
	require.NoError(t, c.Shutdown("restart", time.Second))

	select {
	case evt := <-ch:
		require.NotNil(t, evt.Shutdown)
		assert.Equal(t, "restart", evt.Shutdown.Reason)
	case <-time.After(time.Second):
		t.Fatal("shutdown event was not delivered")
	}
}

func TestShutdownCoordinator_DeadlineExceeded(t *testing.T) {
	c := NewShutdownCoordinator(context.Background(), nil, nil)

	release := make(chan struct{})
	err := c.Spawn("stuck", func(ctx context.Context) {
		<-release
	})
	require.NoError(t, err)

	err = c.Shutdown("test", 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTimeout))
	close(release)
}

func TestShutdownCoordinator_RefusesSpawnAfterShutdown(t *testing.T) {
	c := NewShutdownCoordinator(context.Background(), nil, nil)
	require.NoError(t, c.Shutdown("test", time.Second))

	err := c.Spawn("late", func(ctx context.Context) {})
	require.Error(t, err)
	assert.True(t, c.IsShuttingDown())
}

type fakeDrainer struct {
	mu     sync.Mutex
	active int
}

func (d *fakeDrainer) WaitForDrainAll(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		active := d.active
		d.mu.Unlock()
		if active == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errs.New(errs.KindTimeout, "connections still active")
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.KindTimeout, "drain interrupted", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestShutdownCoordinator_WaitsForDrainers(t *testing.T) {
	c := NewShutdownCoordinator(context.Background(), nil, nil)
	drainer := &fakeDrainer{active: 1}
	c.RegisterDrainer(drainer)

	go func() {
		time.Sleep(50 * time.Millisecond)
		drainer.mu.Lock()
		drainer.active = 0
		drainer.mu.Unlock()
	}()

	assert.NoError(t, c.Shutdown("test", 2*time.Second))
}

func TestShutdownCoordinator_DrainTimeout(t *testing.T) {
	c := NewShutdownCoordinator(context.Background(), nil, nil)
	c.RegisterDrainer(&fakeDrainer{active: 1})

	err := c.Shutdown("test", 150*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTimeout))
}

func TestShutdownCoordinator_SpawnCancellable(t *testing.T) {
	c := NewShutdownCoordinator(context.Background(), nil, nil)

	done := make(chan struct{})
	err := c.SpawnCancellable("self-stopping", func(ctx context.Context, cancel context.CancelFunc) {
		cancel()
		<-ctx.Done()
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not observe its own cancellation")
	}
	require.NoError(t, c.Shutdown("test", time.Second))
}
