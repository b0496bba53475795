package engine

import (
	"context"

	"jobsys/internal/task/job"
)

// IndexFunc is the per-index body of ParallelFor.
type IndexFunc func(ctx context.Context, i int) error

// RangeFunc is the per-chunk body of ParallelForRange over [lo, hi).
type RangeFunc func(ctx context.Context, lo, hi int) error

// ParallelFor calls f for every i in [begin, end), split into chunks of
// granularity indices (auto when <= 0). The handle completes once every chunk
// has run. A chunk stops at its first error and marks the handle Failed.
func (s *Scheduler) ParallelFor(ctx context.Context, begin, end int, f IndexFunc, granularity int) (job.Handle, error) {
	if f == nil {
		return job.Handle{}, job.ErrNoWork
	}
	return s.ParallelForRange(ctx, begin, end, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := f(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}, granularity)
}

// ParallelForRange is ParallelFor with one call per chunk.
// An empty range returns an already complete, successful handle.
func (s *Scheduler) ParallelForRange(ctx context.Context, begin, end int, f RangeFunc, granularity int) (job.Handle, error) {
	if f == nil {
		return job.Handle{}, job.ErrNoWork
	}
	if begin >= end {
		c := job.NewCounter(0)
		c.SetResult(job.ResultSuccess)
		return job.NewHandle(c), nil
	}

	// Spans wider than MaxInt still fit in a uint64.
	span := uint64(end) - uint64(begin)
	g := uint64(granularity)
	if granularity <= 0 {
		g = s.autoGranularity(span)
	}
	chunks := (span-1)/g + 1
	c := job.NewCounter(chunks)

	for i := uint64(0); i < chunks; i++ {
		lo := int(uint64(begin) + i*g)
		hi := end
		if uint64(end)-uint64(lo) > g {
			hi = int(uint64(lo) + g)
		}
		err := s.Submit(ctx, func(ctx context.Context) error { return f(ctx, lo, hi) }, c, job.PriorityNormal)
		if err != nil {
			// Settle the chunks that never made it so waiters are released.
			for k := i; k < chunks; k++ {
				c.Finish(job.ResultCancelled, err)
			}
			return job.NewHandle(c), err
		}
	}
	return job.NewHandle(c), nil
}

func (s *Scheduler) autoGranularity(span uint64) uint64 {
	workers := s.WorkerCount()
	if workers <= 0 {
		workers = 1
	}
	return max(span/uint64(2*workers), 1)
}
