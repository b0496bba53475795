package config

import (
	"fmt"
	"strings"
	"time"

	logx "jobsys/pkg/logx"
)

var backgroundKinds = map[string]bool{"sleep": true, "parallel": true, "stats": true}

// Validate checks field shapes: durations parse, counts are non-negative,
// names are unique. Cross-component checks (schedules, priorities) live in the app.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if lvl := strings.TrimSpace(c.Logging.Level); lvl != "" {
		if !logx.ValidLevel(lvl) {
			return fmt.Errorf("logging.level: invalid %q", lvl)
		}
	}

	e := c.Engine
	if e.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0")
	}
	if e.HistorySize < 0 {
		return fmt.Errorf("engine.history_size must be >= 0")
	}
	if e.FailureLogBurst < 0 {
		return fmt.Errorf("engine.failure_log_burst must be >= 0")
	}
	for path, raw := range map[string]string{
		"engine.failure_log_every": e.FailureLogEvery,
		"engine.wait_all_poll":     e.WaitAllPoll,
		"engine.stop_timeout":      e.StopTimeout,
		"frames.interval":          c.Frames.Interval,
		"frames.item_cost":         c.Frames.ItemCost,
		"pprof.read_timeout":       c.Pprof.ReadTimeout,
		"pprof.write_timeout":      c.Pprof.WriteTimeout,
		"pprof.idle_timeout":       c.Pprof.IdleTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	f := c.Frames
	if f.FanOut < 0 || f.Items < 0 || f.Granularity < 0 || f.MainThreadJobs < 0 {
		return fmt.Errorf("frames: fan_out, items, granularity and main_thread_jobs must be >= 0")
	}

	if tz := strings.TrimSpace(c.Background.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("background.timezone: invalid %q: %w", tz, err)
		}
	}
	seen := map[string]bool{}
	for i, j := range c.Background.Jobs {
		path := fmt.Sprintf("background.jobs[%d]", i)
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("%s.name required", path)
		}
		if seen[name] {
			return fmt.Errorf("%s.name: duplicate %q", path, name)
		}
		seen[name] = true
		if !backgroundKinds[strings.ToLower(strings.TrimSpace(j.Kind))] {
			return fmt.Errorf("%s.kind: unknown %q (sleep, parallel, stats)", path, j.Kind)
		}
		if strings.TrimSpace(j.Schedule) == "" {
			return fmt.Errorf("%s.schedule required", path)
		}
		if j.Items < 0 {
			return fmt.Errorf("%s.items must be >= 0", path)
		}
		if _, err := ParseDurationField(path+".duration", j.Duration); err != nil {
			return err
		}
	}
	return nil
}
