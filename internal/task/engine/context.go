package engine

import "context"

type ctxKey int

const (
	workerCtxKey ctxKey = iota
	mainCtxKey
)

type workerTag struct {
	s *Scheduler
	w *worker
}

func (s *Scheduler) workerContext(ctx context.Context, w *worker) context.Context {
	return context.WithValue(ctx, workerCtxKey, workerTag{s: s, w: w})
}

// workerFrom returns the worker carried by ctx, or nil when ctx does not belong
// to a worker of s's current pool.
func (s *Scheduler) workerFrom(ctx context.Context) *worker {
	if ctx == nil {
		return nil
	}
	tag, ok := ctx.Value(workerCtxKey).(workerTag)
	if !ok || tag.s != s || tag.w == nil {
		return nil
	}
	if tag.w.p != s.pool.Load() {
		return nil
	}
	return tag.w
}

// MainContext marks ctx as belonging to the main thread: the one goroutine that
// drives frames and runs main-thread-only jobs.
func (s *Scheduler) MainContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, mainCtxKey, s)
}

func (s *Scheduler) IsMainThread(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(mainCtxKey).(*Scheduler)
	return owner == s && s.workerFrom(ctx) == nil
}

// IsWorker reports whether ctx was handed to a job body by one of s's workers.
func (s *Scheduler) IsWorker(ctx context.Context) bool {
	return s.workerFrom(ctx) != nil
}
