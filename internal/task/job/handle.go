package job

import "context"

// Handle is a copyable, observe-only reference to a Counter returned by the
// submission APIs. It never controls scheduling.
//
// The zero Handle refers to nothing: it is complete, Pending and has no error.
type Handle struct {
	c *Counter
}

func NewHandle(c *Counter) Handle { return Handle{c: c} }

// Counter exposes the underlying counter, e.g. to share it as a dependency.
func (h Handle) Counter() *Counter { return h.c }

func (h Handle) Valid() bool { return h.c != nil }

func (h Handle) IsComplete() bool {
	if h.c == nil {
		return true
	}
	return h.c.IsComplete()
}

func (h Handle) Wait() {
	if h.c == nil {
		return
	}
	h.c.Wait()
}

func (h Handle) WaitContext(ctx context.Context) error {
	if h.c == nil {
		return nil
	}
	return h.c.WaitContext(ctx)
}

func (h Handle) Done() <-chan struct{} {
	if h.c == nil {
		return closedCh
	}
	return h.c.Done()
}

func (h Handle) Result() Result {
	if h.c == nil {
		return ResultPending
	}
	return h.c.Result()
}

func (h Handle) Err() error {
	if h.c == nil {
		return nil
	}
	return h.c.Err()
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
