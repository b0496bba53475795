package engine

import (
	"context"
	"runtime"

	rtsup "jobsys/internal/runtime/supervisor"
	"jobsys/internal/task/deque"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

// pool is one generation of workers. Apply may replace it while jobs are queued.
type pool struct {
	sup     *rtsup.Supervisor
	workers []*worker
}

func (p *pool) stopped() bool { return p.sup.Context().Err() != nil }

type worker struct {
	id    int
	p     *pool
	local *deque.Deque[*queuedJob]

	// stealNext is the round-robin cursor for victims. Owner-only.
	stealNext int
}

func (s *Scheduler) spawn(ctx context.Context, n int) *pool {
	if n <= 0 {
		n = DefaultWorkers()
	}
	sup := rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "jobs"))),
		// a worker fault must not take the pool down
		rtsup.WithCancelOnError(false),
	)
	p := &pool{sup: sup, workers: make([]*worker, n)}
	for i := range p.workers {
		p.workers[i] = &worker{id: i, p: p, local: deque.New[*queuedJob](), stealNext: i + 1}
	}
	for _, w := range p.workers {
		// Auto-restart workers if the loop itself panics. Job panics never get here.
		sup.GoRestart(workerName(w.id), func(c context.Context) error {
			s.runWorker(c, w)
			return c.Err()
		})
	}
	// Sleeping workers only re-check on a signal, so cancellation needs one too.
	sup.Go0("waker", func(c context.Context) {
		<-c.Done()
		s.idleMu.Lock()
		s.idle.Broadcast()
		s.idleMu.Unlock()
	})
	return p
}

// runWorker is the dispatch loop: own local queue, then the global queues
// High to Normal to Low, then stealing. It sleeps only while nothing is queued.
func (s *Scheduler) runWorker(ctx context.Context, w *worker) {
	wctx := s.workerContext(ctx, w)
	for !w.p.stopped() {
		if j, ok := s.next(w); ok {
			s.execute(wctx, w, j)
			continue
		}
		if s.queued.Load() > 0 {
			// Work exists but its queue was contended. Yield and retry.
			runtime.Gosched()
			continue
		}
		s.sleep(w.p)
	}
}

func (s *Scheduler) sleep(p *pool) {
	s.idleMu.Lock()
	s.sleepers.Add(1)
	for s.queued.Load() <= 0 && !p.stopped() {
		s.idle.Wait()
	}
	s.sleepers.Add(-1)
	s.idleMu.Unlock()
}

// wake must run after the queued count was raised. Paired with sleep it cannot
// lose a wakeup: either the sleeper sees queued > 0, or wake sees the sleeper.
func (s *Scheduler) wake() {
	if s.sleepers.Load() == 0 {
		return
	}
	s.idleMu.Lock()
	s.idle.Signal()
	s.idleMu.Unlock()
}

// next pops one job for w. w may be nil for a goroutine outside the pool,
// which skips the local step.
func (s *Scheduler) next(w *worker) (*queuedJob, bool) {
	if w != nil {
		if j, ok := w.local.PopFront(); ok {
			s.queued.Add(-1)
			return j, true
		}
	}
	if j, ok := s.popGlobal(); ok {
		return j, true
	}
	return s.steal(w)
}

func (s *Scheduler) popGlobal() (*queuedJob, bool) {
	for _, q := range s.global {
		if j, ok := q.PopFront(); ok {
			s.queued.Add(-1)
			return j, true
		}
	}
	return nil, false
}

// steal scans the other workers' local queues round-robin and takes the newest
// job of the first one it can lock without waiting.
func (s *Scheduler) steal(w *worker) (*queuedJob, bool) {
	p := s.pool.Load()
	if p == nil || len(p.workers) == 0 {
		return nil, false
	}
	n := len(p.workers)
	start := 0
	if w != nil {
		start = w.stealNext
	} else {
		start = int(s.stealSeed.Add(1))
	}
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		victim := p.workers[idx]
		if victim == w {
			continue
		}
		if j, ok := victim.local.TryPopBack(); ok {
			s.queued.Add(-1)
			s.stolen.Add(1)
			if w != nil {
				w.stealNext = idx + 1
			}
			return j, true
		}
	}
	return nil, false
}

// push routes j to w's local queue, or to its global priority queue when w is nil.
func (s *Scheduler) push(w *worker, j *queuedJob) {
	if w != nil {
		w.local.PushBack(j)
	} else {
		s.global[j.prio.Index()].PushBack(j)
	}
	s.queued.Add(1)
	s.wake()
}

// requeueLocal moves every job on p's local queues to the global queues.
func (s *Scheduler) requeueLocal(p *pool) {
	for _, w := range p.workers {
		for _, j := range w.local.Drain() {
			s.global[j.prio.Index()].PushBack(j)
		}
	}
	s.idleMu.Lock()
	s.idle.Broadcast()
	s.idleMu.Unlock()
}

// discardQueued empties every queue after a hard stop and settles the
// discarded jobs as Cancelled.
func (s *Scheduler) discardQueued(p *pool) int {
	var dropped []*queuedJob
	for _, w := range p.workers {
		dropped = append(dropped, w.local.Drain()...)
	}
	for _, q := range s.global {
		dropped = append(dropped, q.Drain()...)
	}
	s.queued.Add(-int64(len(dropped)))
	dropped = append(dropped, s.main.Drain()...)

	for _, j := range dropped {
		s.settle(j, job.ResultCancelled, ErrStopped)
	}
	return len(dropped)
}
