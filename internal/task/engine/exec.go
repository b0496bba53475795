package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"jobsys/internal/eventbus"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

// queuedJob is the internal record behind one submission.
type queuedJob struct {
	name string
	fn   job.Func
	cfn  job.CancellableFunc
	tok  *job.CancelToken
	prio job.Priority

	counter *job.Counter
	deps    []*job.Counter
	// frame is set when the job was registered against the open frame.
	frame *job.Counter
}

func (j *queuedJob) ready() bool {
	for _, d := range j.deps {
		if !d.IsComplete() {
			return false
		}
	}
	return true
}

// panicError is recorded on the counter when a body panics.
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string { return fmt.Sprintf("job panicked: %v", e.value) }

// IsPanic reports whether err was produced by a panicking job body.
func IsPanic(err error) bool {
	var pe *panicError
	return errors.As(err, &pe)
}

// execute resolves j's dependencies by helping, then runs its body unless the
// token was cancelled. w is nil on goroutines outside the pool.
func (s *Scheduler) execute(ctx context.Context, w *worker, j *queuedJob) {
	for _, d := range j.deps {
		for !d.IsComplete() {
			if !s.running.Load() {
				s.settle(j, job.ResultCancelled, ErrStopping)
				return
			}
			if !s.helpOne(ctx, w) {
				runtime.Gosched()
			}
		}
	}

	if j.tok.IsCancelled() {
		s.log.Debug("job cancelled before dispatch", logx.String("job", j.name))
		s.publish(eventbus.TypeJobCancelled, JobEvent{Name: j.name, Result: job.ResultCancelled})
		s.record(HistoryItem{Name: j.name, Result: job.ResultCancelled.String(), At: time.Now()})
		s.settle(j, job.ResultCancelled, nil)
		return
	}

	s.active.Add(1)
	started := time.Now()
	err := runBody(ctx, j)
	dur := time.Since(started)
	s.active.Add(-1)

	s.executed.Add(1)
	s.totalNanos.Add(int64(dur))
	s.callProfile(j.name, dur)

	if err != nil {
		s.reportFailure(j, err, dur)
		s.settle(j, job.ResultFailed, err)
		return
	}
	s.settle(j, job.ResultSuccess, nil)
}

// helpOne runs at most one ready job from any reachable queue. Jobs that are not
// ready are put back on their global queue so a helper never nests dependency waits.
func (s *Scheduler) helpOne(ctx context.Context, w *worker) bool {
	j, ok := s.next(w)
	if !ok {
		return false
	}
	if !j.ready() {
		s.push(nil, j)
		return false
	}
	s.execute(ctx, w, j)
	return true
}

// runBody calls the job body and turns a panic into an error.
func runBody(ctx context.Context, j *queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	if j.cfn != nil {
		return j.cfn(ctx, j.tok)
	}
	return j.fn(ctx)
}

// callProfile runs the profile callback. A panic there is logged and dropped so
// the job still settles.
func (s *Scheduler) callProfile(name string, dur time.Duration) {
	fn := s.profile.Load()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && s.failLog.Allow() {
			s.log.Error("profile callback panicked", logx.String("job", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	(*fn)(name, dur)
}

func (s *Scheduler) settle(j *queuedJob, r job.Result, err error) {
	if j.counter != nil {
		j.counter.Finish(r, err)
	}
	if j.frame != nil {
		j.frame.Decrement()
	}
	s.pending.Add(-1)
}

func (s *Scheduler) reportFailure(j *queuedJob, err error, dur time.Duration) {
	s.record(HistoryItem{Name: j.name, Result: job.ResultFailed.String(), Error: err.Error(), At: time.Now(), Duration: dur})
	s.publish(eventbus.TypeJobFailed, JobEvent{Name: j.name, Result: job.ResultFailed, Error: err.Error(), Duration: dur})

	if !s.failLog.Allow() {
		s.droppedFailLogs.Add(1)
		return
	}
	var pe *panicError
	if errors.As(err, &pe) {
		s.log.Error("job panicked", logx.String("job", j.name), logx.Any("panic", pe.value), logx.Stack(pe.stack))
		return
	}
	s.log.Warn("job failed", logx.String("job", j.name), logx.Duration("duration", dur), logx.Err(err))
}
