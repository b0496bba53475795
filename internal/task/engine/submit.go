package engine

import (
	"context"
	"fmt"
	"runtime"

	"jobsys/internal/task/job"
)

// Submit enqueues a fire-and-forget job.
//
// c, if non-nil, must already account for this job (NewCounter(n) for n jobs):
// the job only decrements it. From a worker context the job lands on that
// worker's local queue, otherwise on the global queue for p.
func (s *Scheduler) Submit(ctx context.Context, fn job.Func, c *job.Counter, p job.Priority) error {
	if fn == nil {
		return job.ErrNoWork
	}
	return s.enqueue(ctx, &queuedJob{fn: fn, prio: p, counter: c})
}

// SubmitJob enqueues d with a fresh single-use counter and returns a handle to it.
//
// A High priority job submitted while a frame is open is also registered
// against the frame, so EndFrame waits for it.
func (s *Scheduler) SubmitJob(ctx context.Context, d job.Desc) (job.Handle, error) {
	if err := d.Validate(); err != nil {
		return job.Handle{}, fmt.Errorf("submit %q: %w", d.Name, err)
	}
	c := job.NewCounter(1)
	j := &queuedJob{
		name:    d.Name,
		fn:      d.Func,
		cfn:     d.CancellableFunc,
		tok:     d.Token,
		prio:    d.Priority,
		counter: c,
	}
	for _, h := range d.Deps {
		if dc := h.Counter(); dc != nil {
			j.deps = append(j.deps, dc)
		}
	}

	if d.MainThreadOnly {
		return job.NewHandle(c), s.enqueueMain(j)
	}
	return job.NewHandle(c), s.enqueue(ctx, j)
}

// SubmitJobs submits ds in order. Every descriptor is validated before any is
// queued; the returned handles correspond 1:1 to ds.
func (s *Scheduler) SubmitJobs(ctx context.Context, ds []job.Desc) ([]job.Handle, error) {
	for _, d := range ds {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("submit %q: %w", d.Name, err)
		}
	}
	hs := make([]job.Handle, 0, len(ds))
	for _, d := range ds {
		h, err := s.SubmitJob(ctx, d)
		if err != nil {
			return hs, err
		}
		hs = append(hs, h)
	}
	return hs, nil
}

func (s *Scheduler) enqueue(ctx context.Context, j *queuedJob) error {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	if !s.running.Load() {
		return ErrStopped
	}
	s.pending.Add(1)
	s.registerFrame(j)
	s.push(s.workerFrom(ctx), j)
	return nil
}

func (s *Scheduler) enqueueMain(j *queuedJob) error {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	if !s.running.Load() {
		return ErrStopped
	}
	s.pending.Add(1)
	s.registerFrame(j)
	s.main.PushBack(j)
	select {
	case s.mainNotify <- struct{}{}:
	default:
	}
	return nil
}

// Wait blocks until h completes or ctx is done. From a worker context it keeps
// the worker busy running other ready jobs instead of parking it.
func (s *Scheduler) Wait(ctx context.Context, h job.Handle) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w := s.workerFrom(ctx)
	if w == nil {
		return h.WaitContext(ctx)
	}
	for !h.IsComplete() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.helpOne(ctx, w) {
			runtime.Gosched()
		}
	}
	return nil
}
