package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"jobsys/internal/eventbus"
	"jobsys/internal/task/engine"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

// BenchOptions sizes a one-shot load run.
type BenchOptions struct {
	Workers int
	// Producers goroutines each submit Jobs fire-and-forget jobs concurrently.
	Producers int
	Jobs      int
	// Frames frames are run after the burst, each fanning out FanOut slices of Items.
	Frames      int
	FanOut      int
	Items       int
	Granularity int
	ItemCost    time.Duration
}

// BenchResult summarizes a load run.
type BenchResult struct {
	Workers      int           `json:"workers"`
	Submitted    uint64        `json:"submitted"`
	Frames       int           `json:"frames"`
	Elapsed      time.Duration `json:"elapsed"`
	FrameAvg     time.Duration `json:"frame_avg"`
	FrameMax     time.Duration `json:"frame_max"`
	Stats        engine.Stats  `json:"stats"`
	JobsPerSec   float64       `json:"jobs_per_sec"`
	FailedEvents uint64        `json:"failed_events"`
}

// Bench runs a private scheduler through a concurrent submission burst and a
// series of frames, then stops it.
func Bench(ctx context.Context, opts BenchOptions, log logx.Logger) (BenchResult, error) {
	if opts.Producers <= 0 {
		opts.Producers = 1
	}
	if opts.FanOut <= 0 {
		opts.FanOut = 4
	}
	if opts.Items <= 0 {
		opts.Items = 1024
	}

	bus := eventbus.New()
	failed, unsub := bus.Subscribe(1024, eventbus.TypeJobFailed)
	defer unsub()

	eng := engine.New(engine.Config{Workers: opts.Workers}, log.With(logx.String("comp", "jobs")), bus)
	eng.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Close(stopCtx)
	}()

	res := BenchResult{Workers: eng.WorkerCount()}
	start := time.Now()

	var submitted atomic.Uint64
	c := job.NewCounter(0)
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < opts.Producers; p++ {
		g.Go(func() error {
			for i := 0; i < opts.Jobs; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				c.Increment()
				if err := eng.Submit(gctx, func(context.Context) error {
					spin(opts.ItemCost)
					return nil
				}, c, job.PriorityNormal); err != nil {
					c.Decrement()
					return fmt.Errorf("submit: %w", err)
				}
				submitted.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := c.WaitContext(ctx); err != nil {
		return res, err
	}
	res.Submitted = submitted.Load()

	mctx := eng.MainContext(ctx)
	var frameTotal time.Duration
	for f := 0; f < opts.Frames; f++ {
		fs := time.Now()
		eng.BeginFrame()
		for i := 0; i < opts.FanOut; i++ {
			if _, err := eng.SubmitJob(mctx, job.Desc{
				Name:     "bench.slice",
				Priority: job.PriorityHigh,
				Func:     sliceJob(eng, opts.Items, opts.Granularity, opts.ItemCost),
			}); err != nil {
				return res, err
			}
		}
		if err := eng.EndFrame(mctx); err != nil {
			return res, err
		}
		d := time.Since(fs)
		frameTotal += d
		res.FrameMax = max(res.FrameMax, d)
		res.Frames++
	}
	if err := eng.WaitAll(ctx); err != nil {
		return res, err
	}

	res.Elapsed = time.Since(start)
	if res.Frames > 0 {
		res.FrameAvg = frameTotal / time.Duration(res.Frames)
	}
	res.Stats = eng.Stats()
	if s := res.Elapsed.Seconds(); s > 0 {
		res.JobsPerSec = float64(res.Stats.TotalExecuted) / s
	}
	res.FailedEvents = uint64(len(failed))
	return res, nil
}
