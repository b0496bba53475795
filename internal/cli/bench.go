package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobsys/internal/app"
)

func newBenchCmd() *cobra.Command {
	var (
		opts    app.BenchOptions
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a one-shot load through a private scheduler and print the stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			res, err := app.Bench(ctx, opts, logger)
			if err != nil {
				return fmt.Errorf("bench: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "workers:      %d\n", res.Workers)
			fmt.Fprintf(out, "submitted:    %d\n", res.Submitted)
			fmt.Fprintf(out, "executed:     %d (stolen %d)\n", res.Stats.TotalExecuted, res.Stats.TotalStolen)
			fmt.Fprintf(out, "avg job:      %s\n", res.Stats.AverageDuration)
			fmt.Fprintf(out, "frames:       %d (avg %s, max %s)\n", res.Frames, res.FrameAvg, res.FrameMax)
			fmt.Fprintf(out, "elapsed:      %s\n", res.Elapsed.Round(time.Microsecond))
			fmt.Fprintf(out, "throughput:   %.0f jobs/s\n", res.JobsPerSec)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Workers, "workers", "w", 0, "Worker count (0 = CPUs-1)")
	f.IntVar(&opts.Producers, "producers", 4, "Goroutines submitting jobs concurrently")
	f.IntVarP(&opts.Jobs, "jobs", "n", 10000, "Jobs submitted by each producer")
	f.IntVar(&opts.Frames, "frames", 60, "Frames to run after the burst")
	f.IntVar(&opts.FanOut, "fan-out", 4, "High priority jobs per frame")
	f.IntVar(&opts.Items, "items", 1024, "Parallel-for indices per frame job")
	f.IntVar(&opts.Granularity, "granularity", 0, "Parallel-for chunk size (0 = auto)")
	f.DurationVar(&opts.ItemCost, "item-cost", 0, "Simulated CPU work per job and per index")
	f.DurationVar(&timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	f.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
