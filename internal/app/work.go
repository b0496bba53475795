package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobsys/internal/config"
	"jobsys/internal/task/engine"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

// spin burns CPU for roughly d. It stands in for real per-item work.
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}

// sliceJob is the body of one High priority frame job: a parallel-for over
// items indices, waited on with the helping protocol.
func sliceJob(eng *engine.Scheduler, items, granularity int, cost time.Duration) job.Func {
	return func(ctx context.Context) error {
		h, err := eng.ParallelFor(ctx, 0, items, func(context.Context, int) error {
			spin(cost)
			return nil
		}, granularity)
		if err != nil {
			return err
		}
		if err := eng.Wait(ctx, h); err != nil {
			return err
		}
		return h.Err()
	}
}

// backgroundFunc builds the body of a configured background job.
func backgroundFunc(eng *engine.Scheduler, log logx.Logger, bj config.BackgroundJob) (job.Func, error) {
	d, err := config.ParseDurationField("duration", bj.Duration)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(bj.Name)

	switch strings.ToLower(strings.TrimSpace(bj.Kind)) {
	case "sleep":
		return func(ctx context.Context) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}, nil
	case "parallel":
		items := bj.Items
		if items <= 0 {
			items = 1024
		}
		return sliceJob(eng, items, 0, d), nil
	case "stats":
		return func(context.Context) error {
			st := eng.Stats()
			log.Info("job scheduler stats",
				logx.String("job", name),
				logx.Uint64("executed", st.TotalExecuted),
				logx.Uint64("stolen", st.TotalStolen),
				logx.Duration("avg", st.AverageDuration),
				logx.Int("pending", eng.PendingJobCount()),
				logx.Int("workers", eng.WorkerCount()),
			)
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown background kind %q", bj.Kind)
	}
}
