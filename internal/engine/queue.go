package engine

import (
	"sync"
	"sync/atomic"
)

// Command states.
const (
	cmdQueued int32 = iota
	cmdRunning
	cmdCancelled
)

// command is one unit of work for the simulation worker.
type command struct {
	name string
	tick bool
	fn   func() error

	state atomic.Int32
	err   error
	done  chan struct{} // Closed once the command ran or was cancelled
}

func newCommand(name string, fn func() error) *command {
	return &command{name: name, fn: fn, done: make(chan struct{})}
}

// cancel marks a queued command as cancelled. Reports false if the worker
// already picked it up.
func (c *command) cancel(err error) bool {
	if !c.state.CompareAndSwap(cmdQueued, cmdCancelled) {
		return false
	}
	c.err = err
	close(c.done)
	return true
}

// queue is an unbounded FIFO of commands. Pushing never blocks, so the
// automation timer cannot stall behind a slow tick.
type queue struct {
	mu     sync.Mutex
	items  []*command
	wake   chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

// push appends c. Fails with ErrClosed once the queue is closed.
func (q *queue) push(c *command) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, c)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// pop blocks until a command is available. Returns false when the queue
// is closed and empty.
func (q *queue) pop() (*command, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			c := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return c, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.wake
	}
}

// dropTicks removes queued ticks and returns how many were dropped.
func (q *queue) dropTicks() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	dropped := 0
	for _, c := range q.items {
		if c.tick {
			c.cancel(ErrClosed)
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return dropped
}

// close stops accepting commands. Queued commands remain poppable.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// cancelAll cancels every queued command and returns how many there were.
func (q *queue) cancelAll(err error) int {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	n := 0
	for _, c := range items {
		if c.cancel(err) {
			n++
		}
	}
	return n
}

// size returns the number of queued commands.
func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
