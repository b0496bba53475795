package cli

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"jobsys/internal/app"
)

func newRunCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler daemon until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cfgPath)
			if err != nil {
				return err
			}

			var reason atomic.Value
			reason.Store(app.StopUnknown)
			ctx, cancel := signalContext(cmd.Context(), &reason)
			defer cancel()

			return a.Run(ctx, func() app.StopReason { return reason.Load().(app.StopReason) })
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "Path to the JSON or YAML config file")
	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM and records which one arrived.
func signalContext(parent context.Context, reason *atomic.Value) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGTERM {
				reason.Store(app.StopSIGTERM)
			} else {
				reason.Store(app.StopSIGINT)
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}
