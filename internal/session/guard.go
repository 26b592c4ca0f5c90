package session

import (
	"sync"
	"sync/atomic"
)

// Guard grants either one mutator or many concurrent readers access to the
// fields it protects. Acquisition blocks until compatible access is available;
// there is no timeout and no deadlock detection.
//
// A goroutine must never begin a transaction while it already holds one on
// the same guard. This is not checked: a reentrant read can deadlock behind a
// waiting writer, and a reentrant write always deadlocks.
type Guard struct {
	mu sync.RWMutex

	// bookkeeping used to catch unbalanced releases
	readers atomic.Int32
	writing atomic.Bool
}

// Txn is one acquisition of a Guard. Ending it more than once is a no-op.
type Txn struct {
	guard    *Guard
	mutating bool
	ended    atomic.Bool
}

// BeginTransaction blocks until the requested access is granted.
func (g *Guard) BeginTransaction(mutating bool) *Txn {
	if mutating {
		g.mu.Lock()
		g.writing.Store(true)
	} else {
		g.mu.RLock()
		g.readers.Add(1)
	}

	return &Txn{guard: g, mutating: mutating}
}

// EndTransaction releases the access taken by BeginTransaction.
func (t *Txn) EndTransaction() {
	if t == nil || t.guard == nil {
		panic("session: EndTransaction on a transaction that was never begun")
	}
	if !t.ended.CompareAndSwap(false, true) {
		return
	}
	t.guard.release(t.mutating)
}

// Mutating reports whether the transaction holds exclusive access.
func (t *Txn) Mutating() bool {
	return t.mutating
}

func (g *Guard) release(mutating bool) {
	if mutating {
		if !g.writing.CompareAndSwap(true, false) {
			panic("session: mutating transaction released while guard is not held for writing")
		}
		g.mu.Unlock()
		return
	}

	if g.readers.Add(-1) < 0 {
		g.readers.Add(1)
		panic("session: read transaction released while no reader holds the guard")
	}
	g.mu.RUnlock()
}

// View runs fn inside a non-mutating transaction.
func (g *Guard) View(fn func()) {
	tx := g.BeginTransaction(false)
	defer tx.EndTransaction()

	fn()
}

// Update runs fn inside a mutating transaction. The guard is released on every
// exit path, including a panic raised by fn.
func (g *Guard) Update(fn func() error) error {
	tx := g.BeginTransaction(true)
	defer tx.EndTransaction()

	return fn()
}

func (g *Guard) openReaders() int {
	return int(g.readers.Load())
}

func (g *Guard) writerActive() bool {
	return g.writing.Load()
}
