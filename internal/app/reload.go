package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobsys/internal/config"
	"jobsys/internal/eventbus"
	logx "jobsys/pkg/logx"
)

// reloadLoop applies every config published by the watcher until ctx is done.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			a.applyConfig(ctx, newCfg)
			lastApplied = newCfg

			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Info("config reloaded (no changes)")
			}
			a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigApplied, Time: time.Now(), Data: sections})
			a.sd.reloaded(fmt.Sprintf("workers=%d", a.engine.WorkerCount()))
		}
	}
}

// applyConfig pushes cfg into every live component. A section that fails to
// map keeps its previous settings.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))

	if ec, err := mapEngineConfig(cfg); err != nil {
		a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(context.WithoutCancel(ctx), ec)
	}
	if d, err := mapStopTimeout(cfg); err == nil {
		a.stopTimeout.Store(int64(d))
	}

	if fs, err := mapFrameSettings(cfg); err != nil {
		a.log.Warn("invalid frames config; keeping previous", logx.Err(err))
	} else {
		a.frames.Store(&fs)
	}

	if err := a.syncBackground(cfg); err != nil {
		a.log.Warn("background jobs not fully applied", logx.Err(err))
	}
	a.trig.Apply(mapTriggerConfig(cfg))

	if pc, err := mapPprofConfig(cfg); err != nil {
		a.log.Warn("invalid pprof config; keeping previous", logx.Err(err))
	} else {
		a.pprof.Apply(ctx, pc)
	}
}
