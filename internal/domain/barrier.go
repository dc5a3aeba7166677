// Package domain contains the core parallel replay workflow: the
// barrier-synchronized execution harness, the cross-thread comparator, and
// the suite gluing classification to execution.
package domain

import (
	"errors"
	"sync"
)

// ErrBarrierAborted is returned from Wait after Abort breaks the barrier.
var ErrBarrierAborted = errors.New("barrier aborted")

// Barrier is a reusable cyclic barrier: Wait blocks until size participants
// have arrived, then releases them all simultaneously and arms itself for
// the next cycle.
type Barrier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	size   int
	count  int
	cycle  uint64
	broken bool
}

// NewBarrier creates a barrier for size participants. size must be >= 1.
func NewBarrier(size int) *Barrier {
	if size < 1 {
		size = 1
	}

	b := &Barrier{size: size}
	b.cond = sync.NewCond(&b.mu)

	return b
}

// Wait blocks until every participant of the current cycle has arrived. The
// last arrival releases the rest and starts a new cycle.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		return ErrBarrierAborted
	}

	b.count++
	if b.count == b.size {
		b.count = 0
		b.cycle++
		b.cond.Broadcast()

		return nil
	}

	cycle := b.cycle
	for cycle == b.cycle && !b.broken {
		b.cond.Wait()
	}

	if b.broken {
		return ErrBarrierAborted
	}

	return nil
}

// Abort permanently breaks the barrier, releasing every current and future
// waiter with ErrBarrierAborted. Used when not all expected participants
// could be started, so the ones that did start cannot deadlock.
func (b *Barrier) Abort() {
	b.mu.Lock()
	b.broken = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
