// Package deque provides the double-ended queue used for the engine's run queues.
//
// A Deque has two access modes and the split is part of its contract:
//
//   - owner: PushBack and PopFront. The owning worker consumes in FIFO order.
//   - thief: TryPopBack. Other workers steal the newest item from the opposite
//     end, and never wait for the lock: a contended deque is skipped.
//
// Global queues have no single owner; producers PushBack and any worker PopFront.
package deque

import (
	"sync"

	gdeque "github.com/gammazero/deque"
)

type Deque[T any] struct {
	mu sync.Mutex
	q  gdeque.Deque[T]
}

func New[T any]() *Deque[T] { return &Deque[T]{} }

func (d *Deque[T]) PushBack(v T) {
	d.mu.Lock()
	d.q.PushBack(v)
	d.mu.Unlock()
}

// PopFront removes the oldest item.
func (d *Deque[T]) PopFront() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.q.Len() == 0 {
		var zero T
		return zero, false
	}
	return d.q.PopFront(), true
}

// TryPopBack removes the newest item if the lock is free.
// It returns false both when the deque is empty and when another goroutine holds it.
func (d *Deque[T]) TryPopBack() (T, bool) {
	var zero T
	if !d.mu.TryLock() {
		return zero, false
	}
	defer d.mu.Unlock()
	if d.q.Len() == 0 {
		return zero, false
	}
	return d.q.PopBack(), true
}

func (d *Deque[T]) Len() int {
	d.mu.Lock()
	n := d.q.Len()
	d.mu.Unlock()
	return n
}

// Drain removes and returns every item, oldest first.
func (d *Deque[T]) Drain() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.q.Len()
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for d.q.Len() > 0 {
		out = append(out, d.q.PopFront())
	}
	return out
}
