package job

import (
	"context"
	"sync"
)

// Counter tracks how many units of work are still outstanding.
//
// Waiters are released when the count reaches zero. The terminal Result only
// moves toward more severe outcomes: Pending -> Success -> Failed/Cancelled.
// Once Failed or Cancelled is recorded it sticks until Reset.
//
// The zero value is a counter at zero (complete) with a Pending result.
// All methods are safe for concurrent use.
type Counter struct {
	mu     sync.Mutex
	count  uint64
	result Result
	err    error

	// done is closed iff count == 0. Lazily created so the zero value works.
	done chan struct{}
}

// NewCounter returns a counter with n outstanding units.
// Use 0 for manual events, 1 for a single job and N for fan-out.
func NewCounter(n uint64) *Counter {
	c := &Counter{count: n}
	c.mu.Lock()
	c.chLocked()
	c.mu.Unlock()
	return c
}

func (c *Counter) chLocked() chan struct{} {
	if c.done == nil {
		c.done = make(chan struct{})
		if c.count == 0 {
			close(c.done)
		}
	}
	return c.done
}

func (c *Counter) Increment() {
	c.mu.Lock()
	c.chLocked()
	if c.count == 0 {
		c.done = make(chan struct{})
	}
	c.count++
	c.mu.Unlock()
}

// Add increments the counter by n in one step.
func (c *Counter) Add(n uint64) {
	if n == 0 {
		return
	}
	c.mu.Lock()
	c.chLocked()
	if c.count == 0 {
		c.done = make(chan struct{})
	}
	c.count += n
	c.mu.Unlock()
}

// Decrement releases one unit. Reaching zero wakes every waiter.
// Decrementing a counter that is already at zero does nothing.
func (c *Counter) Decrement() {
	c.mu.Lock()
	c.decrementLocked()
	c.mu.Unlock()
}

func (c *Counter) decrementLocked() {
	if c.count == 0 {
		return
	}
	ch := c.chLocked()
	c.count--
	if c.count == 0 {
		close(ch)
	}
}

// Finish records r (and err, if any) and then decrements, under one lock.
// A waiter released by this call always observes the recorded result.
func (c *Counter) Finish(r Result, err error) {
	c.mu.Lock()
	c.setResultLocked(r, err)
	c.decrementLocked()
	c.mu.Unlock()
}

// Done returns a channel that is closed while the count is zero.
//
// A later Increment or Reset installs a fresh channel; callers holding the old
// one still see it closed, which matches "the count was zero at some point".
func (c *Counter) Done() <-chan struct{} {
	c.mu.Lock()
	ch := c.chLocked()
	c.mu.Unlock()
	return ch
}

// Wait blocks until the count is zero.
//
// Do not call this from inside a job body: a worker parked here is a worker that
// cannot run the jobs it waits on. Use engine.Scheduler.Wait there instead.
func (c *Counter) Wait() {
	<-c.Done()
}

// WaitContext is Wait bounded by ctx.
func (c *Counter) WaitContext(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Counter) IsComplete() bool {
	c.mu.Lock()
	done := c.count == 0
	c.mu.Unlock()
	return done
}

func (c *Counter) Count() uint64 {
	c.mu.Lock()
	n := c.count
	c.mu.Unlock()
	return n
}

// Reset reinitializes the count to n and the result to Pending, so one counter
// can be recycled (e.g. per frame).
func (c *Counter) Reset(n uint64) {
	c.mu.Lock()
	ch := c.chLocked()
	wasZero := c.count == 0
	switch {
	case n == 0 && !wasZero:
		close(ch)
	case n > 0 && wasZero:
		c.done = make(chan struct{})
	}
	c.count = n
	c.result = ResultPending
	c.err = nil
	c.mu.Unlock()
}

// SetResult applies r under the monotonic-severity rule:
// Failed and Cancelled are never overwritten, and nothing moves back to Pending.
func (c *Counter) SetResult(r Result) {
	c.mu.Lock()
	c.setResultLocked(r, nil)
	c.mu.Unlock()
}

// Fail records ResultFailed and keeps err if it is the first error seen.
func (c *Counter) Fail(err error) {
	c.mu.Lock()
	c.setResultLocked(ResultFailed, err)
	c.mu.Unlock()
}

func (c *Counter) setResultLocked(r Result, err error) {
	if c.result.sticky() || r == ResultPending {
		return
	}
	c.result = r
	if err != nil && c.err == nil {
		c.err = err
	}
}

func (c *Counter) Result() Result {
	c.mu.Lock()
	r := c.result
	c.mu.Unlock()
	return r
}

// Err returns the first error recorded by a failing job, if any.
func (c *Counter) Err() error {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	return err
}
