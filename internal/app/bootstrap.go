package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobsys/internal/config"
	"jobsys/internal/observability/pprof"
	"jobsys/internal/task/engine"
	"jobsys/internal/task/job"
	"jobsys/internal/task/trigger"
	logx "jobsys/pkg/logx"
)

const (
	defaultStopTimeout   = 5 * time.Second
	defaultFrameInterval = 16 * time.Millisecond
)

// frameSettings is the resolved form of config.FramesConfig.
type frameSettings struct {
	Enabled        bool
	Interval       time.Duration
	FanOut         int
	Items          int
	Granularity    int
	MainThreadJobs int
	ItemCost       time.Duration
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	e := cfg.Engine
	every, err := config.ParseDurationField("engine.failure_log_every", e.FailureLogEvery)
	if err != nil {
		return engine.Config{}, err
	}
	poll, err := config.ParseDurationField("engine.wait_all_poll", e.WaitAllPoll)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Workers:         e.Workers,
		HistorySize:     e.HistorySize,
		FailureLogEvery: every,
		FailureLogBurst: e.FailureLogBurst,
		WaitAllPoll:     poll,
	}, nil
}

func mapStopTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("engine.stop_timeout", cfg.Engine.StopTimeout, defaultStopTimeout)
}

func mapFrameSettings(cfg *config.Config) (frameSettings, error) {
	f := cfg.Frames
	interval, err := config.ParseDurationOrDefault("frames.interval", f.Interval, defaultFrameInterval)
	if err != nil {
		return frameSettings{}, err
	}
	cost, err := config.ParseDurationField("frames.item_cost", f.ItemCost)
	if err != nil {
		return frameSettings{}, err
	}
	fs := frameSettings{
		Enabled:        f.Enabled,
		Interval:       interval,
		FanOut:         f.FanOut,
		Items:          f.Items,
		Granularity:    f.Granularity,
		MainThreadJobs: f.MainThreadJobs,
		ItemCost:       cost,
	}
	if fs.FanOut == 0 {
		fs.FanOut = 4
	}
	if fs.Items == 0 {
		fs.Items = 1024
	}
	if fs.MainThreadJobs == 0 {
		fs.MainThreadJobs = 1
	}
	return fs, nil
}

func mapTriggerConfig(cfg *config.Config) trigger.Config {
	return trigger.Config{
		Enabled:       cfg.Background.Enabled,
		Timezone:      strings.TrimSpace(cfg.Background.Timezone),
		StartupSpread: cfg.Background.StartupSpread,
	}
}

func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	p := cfg.Pprof
	rt, err := config.ParseDurationOrDefault("pprof.read_timeout", p.ReadTimeout, 5*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	wt, err := config.ParseDurationField("pprof.write_timeout", p.WriteTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	it, err := config.ParseDurationOrDefault("pprof.idle_timeout", p.IdleTimeout, 60*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	return pprof.Config{
		Enabled:              p.Enabled,
		Addr:                 p.Addr,
		Prefix:               p.Prefix,
		Token:                p.Token,
		AllowInsecure:        p.AllowInsecure,
		ReadTimeout:          rt,
		WriteTimeout:         wt,
		IdleTimeout:          it,
		MutexProfileFraction: p.MutexProfileFraction,
		BlockProfileRate:     p.BlockProfileRate,
		MemProfileRate:       p.MemProfileRate,
	}, nil
}

// validate runs the checks that need other packages: schedules must parse and
// priorities must be known. It is installed as the config reload validator.
func validate(_ context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := mapFrameSettings(cfg); err != nil {
		return err
	}
	if _, err := mapPprofConfig(cfg); err != nil {
		return err
	}
	for i, bj := range cfg.Background.Jobs {
		if _, err := trigger.ParseSchedule(bj.Schedule); err != nil {
			return fmt.Errorf("background.jobs[%d].schedule: %w", i, err)
		}
		if p := strings.TrimSpace(bj.Priority); p != "" {
			if _, ok := job.ParsePriority(p); !ok {
				return fmt.Errorf("background.jobs[%d].priority: unknown %q", i, p)
			}
		}
	}
	return nil
}
