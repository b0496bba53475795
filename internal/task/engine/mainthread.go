package engine

import (
	"context"
	"time"
)

// ProcessMainThreadJobs runs up to max main-thread jobs on the calling goroutine
// (all queued jobs when max <= 0) and returns how many ran. Called from a job
// body it does nothing and returns 0.
func (s *Scheduler) ProcessMainThreadJobs(ctx context.Context, max int) int {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.IsWorker(ctx) {
		return 0
	}
	if !s.IsMainThread(ctx) {
		ctx = s.MainContext(ctx)
	}
	n := 0
	for max <= 0 || n < max {
		j, ok := s.main.PopFront()
		if !ok {
			break
		}
		s.execute(ctx, nil, j)
		n++
	}
	return n
}

// WaitAll polls until every accepted job has finished, running main-thread jobs
// itself in between. It is meant for shutdown and debugging, not the frame loop.
// A job body would wait on itself, so from a worker it returns ErrWorkerContext.
func (s *Scheduler) WaitAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.IsWorker(ctx) {
		return ErrWorkerContext
	}
	mctx := s.MainContext(ctx)

	s.mu.Lock()
	poll := s.cfg.WaitAllPoll
	s.mu.Unlock()

	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		s.ProcessMainThreadJobs(mctx, 0)
		if s.pending.Load() <= 0 && s.main.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
