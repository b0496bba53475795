package app

import (
	"context"
	"errors"
	"time"

	"jobsys/internal/task/engine"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

// runFrames is the main thread. It ticks at the configured frame interval and
// runs one frame per tick while frames are enabled. Settings are re-read every
// tick so hot reloads apply at the next frame.
func (a *App) runFrames(ctx context.Context) error {
	mctx := a.engine.MainContext(ctx)

	interval := a.frames.Load().Interval
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		fs := a.frames.Load()
		if fs.Interval != interval {
			interval = fs.Interval
			t.Reset(interval)
		}
		if !fs.Enabled {
			continue
		}

		took, err := a.runFrame(mctx, *fs)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, engine.ErrStopped) {
				continue
			}
			a.log.Warn("frame failed", logx.Err(err))
		}
		if took > interval {
			n := a.overruns.Add(1)
			if a.overrunLog.Allow() {
				a.log.Warn("frame overran its interval",
					logx.Duration("took", took),
					logx.Duration("interval", interval),
					logx.Uint64("overruns", n),
				)
			}
		}
	}
}

// runFrame opens a frame, fans out fs.FanOut High priority slice jobs and
// fs.MainThreadJobs main-thread jobs, and closes it with EndFrame. mctx must
// be a main-thread context.
func (a *App) runFrame(mctx context.Context, fs frameSettings) (time.Duration, error) {
	start := time.Now()
	frame := a.engine.BeginFrame()

	var errs []error
	for i := 0; i < fs.FanOut; i++ {
		_, err := a.engine.SubmitJob(mctx, job.Desc{
			Name:     "frame.slice",
			Priority: job.PriorityHigh,
			Func:     sliceJob(a.engine, fs.Items, fs.Granularity, fs.ItemCost),
		})
		if err != nil {
			errs = append(errs, err)
			break
		}
	}
	for i := 0; i < fs.MainThreadJobs && len(errs) == 0; i++ {
		_, err := a.engine.SubmitJob(mctx, job.Desc{
			Name:           "frame.main",
			MainThreadOnly: true,
			Func: func(ctx context.Context) error {
				if !a.engine.IsMainThread(ctx) {
					return errors.New("main-thread job ran off the main thread")
				}
				return nil
			},
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	// Always close the frame, even when submission failed part way.
	if err := a.engine.EndFrame(mctx); err != nil {
		errs = append(errs, err)
	}
	a.framesRun.Add(1)

	took := time.Since(start)
	if a.log.Enabled(logx.LevelTrace) {
		a.log.Trace("frame done", logx.Uint64("frame", frame), logx.Duration("took", took))
	}
	return took, errors.Join(errs...)
}
