package engine

import (
	"context"
	"time"

	"jobsys/internal/eventbus"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

// BeginFrame opens a fresh frame and returns its number. A frame that was never
// ended is replaced; jobs registered against it are no longer waited for.
func (s *Scheduler) BeginFrame() uint64 {
	s.frameMu.Lock()
	if s.frame != nil && !s.frame.IsComplete() {
		s.log.Warn("frame replaced while jobs outstanding", logx.Uint64("frame", s.frameNo), logx.Uint64("outstanding", s.frame.Count()))
	}
	s.frame = job.NewCounter(0)
	s.frameNo++
	s.frameStart = time.Now()
	n := s.frameNo
	s.frameMu.Unlock()

	s.publish(eventbus.TypeFrameBegin, FrameEvent{Frame: n})
	return n
}

func (s *Scheduler) registerFrame(j *queuedJob) {
	if j.prio != job.PriorityHigh {
		return
	}
	s.frameMu.Lock()
	if s.frame != nil {
		s.frame.Increment()
		j.frame = s.frame
	}
	s.frameMu.Unlock()
}

// EndFrame drains the main-thread queue and then blocks until every job
// registered against the open frame has completed. Main-thread jobs that
// arrive meanwhile are run too. The frame is retired on return.
//
// EndFrame must be called from the main thread; it marks ctx as such. From a
// worker it returns ErrWorkerContext.
func (s *Scheduler) EndFrame(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.IsWorker(ctx) {
		return ErrWorkerContext
	}
	mctx := s.MainContext(ctx)

	s.frameMu.Lock()
	fr, n, started := s.frame, s.frameNo, s.frameStart
	s.frameMu.Unlock()

	for {
		s.ProcessMainThreadJobs(mctx, 0)
		if fr == nil || fr.IsComplete() {
			if s.main.Len() > 0 {
				continue
			}
			break
		}
		select {
		case <-fr.Done():
		case <-s.mainNotify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if fr == nil {
		return nil
	}
	s.frameMu.Lock()
	if s.frame == fr {
		s.frame = nil
	}
	s.frameMu.Unlock()

	s.publish(eventbus.TypeFrameEnd, FrameEvent{Frame: n, Duration: time.Since(started)})
	return nil
}

// CurrentFrame returns the number of the last frame begun and whether it is still open.
func (s *Scheduler) CurrentFrame() (uint64, bool) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.frameNo, s.frame != nil
}
