package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/event"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for tasks and
// connections before giving up.
const DefaultShutdownTimeout = 30 * time.Second

// Drainer waits for in-flight connections to reach zero. Satisfied by the
// routing connection tracker.
type Drainer interface {
	WaitForDrainAll(ctx context.Context, timeout time.Duration) error
}

// ShutdownCoordinator owns the process-wide cancellation context and a
// registry of background tasks. Shutdown cancels the context, broadcasts the
// shutdown event, then waits for every task and every registered drainer
// within the deadline.
type ShutdownCoordinator struct {
	ctx    context.Context
	cancel context.CancelFunc
	bus    event.Bus
	logger *slog.Logger

	mu           sync.Mutex
	tasks        sync.WaitGroup
	taskCount    int
	drainers     []Drainer
	shuttingDown bool
}

// NewShutdownCoordinator creates a coordinator rooted at parent.
func NewShutdownCoordinator(parent context.Context, bus event.Bus, logger *slog.Logger) *ShutdownCoordinator {
	if parent == nil {
		parent = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &ShutdownCoordinator{ctx: ctx, cancel: cancel, bus: bus, logger: logger}
}

// Context returns the coordinator's cancellation context. Long-running work
// derives from it so Shutdown reaches everything.
func (c *ShutdownCoordinator) Context() context.Context { return c.ctx }

// IsShuttingDown reports whether Shutdown has begun. Services reject new work
// once it flips.
func (c *ShutdownCoordinator) IsShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shuttingDown
}

// RegisterDrainer adds a connection tracker to wait on during shutdown.
func (c *ShutdownCoordinator) RegisterDrainer(d Drainer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainers = append(c.drainers, d)
}

// Spawn runs fn on the coordinator's context and tracks it until it returns.
// Spawning after shutdown has begun is refused.
func (c *ShutdownCoordinator) Spawn(name string, fn func(ctx context.Context)) error {
	return c.SpawnCancellable(name, func(ctx context.Context, _ context.CancelFunc) {
		fn(ctx)
	})
}

// SpawnCancellable is Spawn with a per-task cancel handed to fn, so the task
// can stop siblings it started itself.
func (c *ShutdownCoordinator) SpawnCancellable(name string, fn func(ctx context.Context, cancel context.CancelFunc)) error {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return errs.Newf(errs.KindInternal, "cannot spawn task %q during shutdown", name)
	}
	c.tasks.Add(1)
	c.taskCount++
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(c.ctx)
	go func() {
		defer func() {
			cancel()
			c.mu.Lock()
			c.taskCount--
			c.mu.Unlock()
			c.tasks.Done()
		}()
		fn(ctx, cancel)
	}()
	return nil
}

// TaskCount reports the number of live tasks.
func (c *ShutdownCoordinator) TaskCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskCount
}

// Shutdown cancels the context, broadcasts the shutdown event, and waits for
// tasks and connection drain. Returns KindTimeout if the deadline passes with
// work still in flight. Safe to call more than once; later calls wait again.
func (c *ShutdownCoordinator) Shutdown(reason string, deadline time.Duration) error {
	if deadline <= 0 {
		deadline = DefaultShutdownTimeout
	}

	c.mu.Lock()
	first := !c.shuttingDown
	c.shuttingDown = true
	drainers := make([]Drainer, len(c.drainers))
	copy(drainers, c.drainers)
	c.mu.Unlock()

	if first {
		c.logger.Info("shutdown initiated",
			slog.String("reason", reason),
			slog.Duration("deadline", deadline))
		if c.bus != nil {
			c.bus.Publish(event.NewShutdown(time.Now(), reason))
		}
		c.cancel()
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-waitCtx.Done():
		return errs.Newf(errs.KindTimeout, "shutdown deadline passed with %d tasks still running", c.TaskCount())
	}

	for _, d := range drainers {
		remaining := time.Until(nowDeadline(waitCtx))
		if remaining <= 0 {
			return errs.New(errs.KindTimeout, "shutdown deadline passed before connections drained")
		}
		if err := d.WaitForDrainAll(waitCtx, remaining); err != nil {
			return errs.Wrap(errs.KindTimeout, "connections did not drain before the deadline", err)
		}
	}

	c.logger.Info("shutdown complete")
	return nil
}

func nowDeadline(ctx context.Context) time.Time {
	d, ok := ctx.Deadline()
	if !ok {
		return time.Now().Add(DefaultShutdownTimeout)
	}
	return d
}
