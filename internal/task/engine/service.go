package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"jobsys/internal/eventbus"
	rtsup "jobsys/internal/runtime/supervisor"
	"jobsys/internal/task/deque"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

// DefaultWorkers is the pool size used when Config.Workers is not set:
// one less than the CPU count, floored at one.
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Scheduler is the job system: a worker pool with per-priority global queues,
// per-worker local queues for stealing, a main-thread queue and an optional
// open frame.
//
// Construct it with New and own it explicitly; there is no package-level instance.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	log      logx.Logger
	bus      eventbus.Bus
	stopDone chan struct{}

	pool atomic.Pointer[pool]

	// subMu orders submissions against Stop: pushes hold it shared while
	// running is checked, Stop flips running under the exclusive lock.
	subMu   sync.RWMutex
	running atomic.Bool

	global [job.NumPriorities]*deque.Deque[*queuedJob]
	main   *deque.Deque[*queuedJob]
	// mainNotify wakes EndFrame when a main-thread job arrives.
	mainNotify chan struct{}

	idleMu   sync.Mutex
	idle     *sync.Cond
	queued   atomic.Int64 // jobs sitting in global and local queues
	sleepers atomic.Int32

	pending atomic.Int64 // accepted and not finished, main-thread jobs included
	active  atomic.Int64 // bodies currently running

	frameMu    sync.Mutex
	frame      *job.Counter
	frameNo    uint64
	frameStart time.Time

	executed   atomic.Uint64
	stolen     atomic.Uint64
	totalNanos atomic.Int64
	profile    atomic.Pointer[ProfileFunc]
	stealSeed  atomic.Uint32

	failLog         *rate.Limiter
	droppedFailLogs atomic.Uint64

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:        cfg,
		log:        log,
		bus:        bus,
		main:       deque.New[*queuedJob](),
		mainNotify: make(chan struct{}, 1),
		failLog:    rate.NewLimiter(rate.Every(cfg.FailureLogEvery), cfg.FailureLogBurst),
	}
	for i := range s.global {
		s.global[i] = deque.New[*queuedJob]()
	}
	s.idle = sync.NewCond(&s.idleMu)
	return s
}

func (s *Scheduler) Config() Config {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return cfg
}

// Supervisor returns the supervisor hosting the current workers (nil if not started).
func (s *Scheduler) Supervisor() *rtsup.Supervisor {
	if p := s.pool.Load(); p != nil {
		return p.sup
	}
	return nil
}

// Start spawns the worker pool. It is idempotent, and starting again after
// Stop or Close is supported.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.pool.Load() != nil {
		// If stopping, wait for it to finish before restarting.
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		if s.pool.Load() != nil {
			s.mu.Unlock()
			return
		}
	}
	cfg := s.cfg
	p := s.spawn(ctx, cfg.Workers)
	s.pool.Store(p)
	s.subMu.Lock()
	s.running.Store(true)
	s.subMu.Unlock()
	s.mu.Unlock()

	s.log.Info("job scheduler started", logx.Int("workers", len(p.workers)))
}

// Stop is a hard stop: workers finish the body they are running and exit, then
// every job still queued is discarded and its counter settled as Cancelled.
// Callers that need a drain should call WaitAll first.
func (s *Scheduler) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	p := s.pool.Load()
	if p == nil {
		s.mu.Unlock()
		return nil
	}
	// If already stopping, wait.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	s.stopDone = done
	s.subMu.Lock()
	s.running.Store(false)
	s.subMu.Unlock()
	s.mu.Unlock()

	p.sup.Cancel()

	go func() {
		// Wait unbounded in background; caller can still time out.
		_ = p.sup.Wait(context.Background())
		n := s.discardQueued(p)

		s.mu.Lock()
		s.pool.Store(nil)
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		if n > 0 {
			s.log.Info("discarded queued jobs", logx.Int("count", n))
		}
	}()

	select {
	case <-done:
		s.log.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("job scheduler stop timed out", logx.Err(ctx.Err()))
		return ctx.Err()
	}
}

// Close stops the scheduler and releases its bookkeeping: stats, history,
// profile callback and any open frame.
func (s *Scheduler) Close(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	s.frameMu.Lock()
	s.frame = nil
	s.frameNo = 0
	s.frameMu.Unlock()

	s.executed.Store(0)
	s.stolen.Store(0)
	s.totalNanos.Store(0)
	s.droppedFailLogs.Store(0)
	s.profile.Store(nil)

	s.hmu.Lock()
	s.history = nil
	s.hmu.Unlock()
	return nil
}

// Apply swaps in cfg. A worker count change replaces the pool without
// discarding queued work: jobs on the old local queues move to the global ones.
func (s *Scheduler) Apply(ctx context.Context, cfg Config) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.withDefaults()

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	if prev.FailureLogEvery != cfg.FailureLogEvery || prev.FailureLogBurst != cfg.FailureLogBurst {
		s.failLog.SetLimit(rate.Every(cfg.FailureLogEvery))
		s.failLog.SetBurst(cfg.FailureLogBurst)
	}
	old := s.pool.Load()
	if old == nil || s.stopDone != nil || prev.Workers == cfg.Workers {
		s.mu.Unlock()
		return
	}
	p := s.spawn(ctx, cfg.Workers)
	s.pool.Store(p)
	s.mu.Unlock()

	old.sup.Cancel()
	s.requeueLocal(old)
	go func() {
		_ = old.sup.Wait(context.Background())
		s.requeueLocal(old)
	}()
	s.log.Info("job scheduler resized", logx.Int("from", len(old.workers)), logx.Int("to", len(p.workers)))
}

// SetProfileCallback installs fn to be called after every executed body. nil removes it.
func (s *Scheduler) SetProfileCallback(fn ProfileFunc) {
	if fn == nil {
		s.profile.Store(nil)
		return
	}
	s.profile.Store(&fn)
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		TotalExecuted: s.executed.Load(),
		TotalStolen:   s.stolen.Load(),
	}
	if st.TotalExecuted > 0 {
		st.AverageDuration = time.Duration(s.totalNanos.Load() / int64(st.TotalExecuted))
	}
	return st
}

func (s *Scheduler) WorkerCount() int {
	if p := s.pool.Load(); p != nil {
		return len(p.workers)
	}
	return 0
}

// PendingJobCount returns the number of jobs waiting in the global and local
// queues. Running and main-thread jobs are not included.
func (s *Scheduler) PendingJobCount() int {
	n := 0
	for _, q := range s.global {
		n += q.Len()
	}
	if p := s.pool.Load(); p != nil {
		for _, w := range p.workers {
			n += w.local.Len()
		}
	}
	return n
}

func (s *Scheduler) MainThreadJobCount() int { return s.main.Len() }

func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Running:         s.running.Load(),
		Main:            s.main.Len(),
		Pending:         s.pending.Load(),
		Active:          s.active.Load(),
		Stats:           s.Stats(),
		DroppedFailLogs: s.droppedFailLogs.Load(),
	}
	for i, q := range s.global {
		snap.Global[i] = q.Len()
	}
	if p := s.pool.Load(); p != nil {
		snap.Workers = len(p.workers)
		snap.Local = make([]int, len(p.workers))
		for i, w := range p.workers {
			snap.Local[i] = w.local.Len()
		}
		snap.Supervisor = p.sup.Snapshot()
	}

	s.frameMu.Lock()
	snap.Frame = s.frameNo
	snap.FrameOpen = s.frame != nil
	s.frameMu.Unlock()

	s.hmu.Lock()
	snap.History = make([]HistoryItem, len(s.history))
	copy(snap.History, s.history)
	s.hmu.Unlock()
	return snap
}

func (s *Scheduler) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}

func workerName(id int) string { return fmt.Sprintf("worker.%d", id) }
