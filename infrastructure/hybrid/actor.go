package hybrid

import (
	"context"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// DefaultQueueCapacity bounds the actor mailbox.
const DefaultQueueCapacity = 256

// message is one unit of work for the actor. Readers set reply and wait on
// it; writers leave reply nil and return as soon as the message is queued.
type message struct {
	run   func(state *state)
	reply chan struct{}
}

// state is the index set owned exclusively by the actor goroutine.
type state struct {
	indexes map[string]*bm25Index
	k1      float64
	b       float64
}

func (s *state) index(collection string) *bm25Index {
	idx, ok := s.indexes[collection]
	if !ok {
		idx = newBM25Index(s.k1, s.b)
		s.indexes[collection] = idx
	}
	return idx
}

// actor serializes every index mutation and read through one goroutine, so
// the bm25Index needs no locking.
type actor struct {
	queue chan message
	done  chan struct{}
}

func newActor(k1, b float64, capacity int) *actor {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	a := &actor{
		queue: make(chan message, capacity),
		done:  make(chan struct{}),
	}
	go a.loop(&state{indexes: map[string]*bm25Index{}, k1: k1, b: b})
	return a
}

func (a *actor) loop(st *state) {
	defer close(a.done)
	for msg := range a.queue {
		msg.run(st)
		if msg.reply != nil {
			close(msg.reply)
		}
	}
}

// send enqueues a write. It never blocks: a full mailbox is a backpressure
// failure surfaced to the caller.
func (a *actor) send(run func(st *state)) error {
	select {
	case a.queue <- message{run: run}:
		return nil
	default:
		return errs.New(errs.KindBackpressure, "hybrid engine queue is full")
	}
}

// call enqueues a read and waits for the actor to process it.
func (a *actor) call(ctx context.Context, run func(st *state)) error {
	reply := make(chan struct{})
	select {
	case a.queue <- message{run: run, reply: reply}:
	default:
		return errs.New(errs.KindBackpressure, "hybrid engine queue is full")
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindTimeout, "hybrid engine read abandoned", ctx.Err())
	}
}

// close stops the actor after the queued messages drain.
func (a *actor) close() {
	close(a.queue)
	<-a.done
}
