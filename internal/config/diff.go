package config

import (
	"reflect"
	"sort"
	"strings"

	logx "jobsys/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields describing the new values. Secrets (pprof token) are only
// reported as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.Int("engine.workers", newCfg.Engine.Workers),
			logx.Bool("engine.workers_changed", oldCfg.Engine.Workers != newCfg.Engine.Workers),
			logx.Int("engine.history_size", newCfg.Engine.HistorySize),
		)
	}

	if !reflect.DeepEqual(oldCfg.Frames, newCfg.Frames) {
		changed = append(changed, "frames")
		attrs = append(attrs,
			logx.Bool("frames.enabled", newCfg.Frames.Enabled),
			logx.String("frames.interval", strings.TrimSpace(newCfg.Frames.Interval)),
			logx.Int("frames.fan_out", newCfg.Frames.FanOut),
			logx.Int("frames.items", newCfg.Frames.Items),
		)
	}

	if !reflect.DeepEqual(oldCfg.Background, newCfg.Background) {
		changed = append(changed, "background")
		attrs = append(attrs,
			logx.Bool("background.enabled", newCfg.Background.Enabled),
			logx.String("background.timezone", strings.TrimSpace(newCfg.Background.Timezone)),
			logx.Int("background.jobs", len(newCfg.Background.Jobs)),
			logx.Any("background.jobs_changed", diffBackgroundJobs(oldCfg.Background.Jobs, newCfg.Background.Jobs)),
		)
	}

	op, np := oldCfg.Pprof, newCfg.Pprof
	oTok, nTok := strings.TrimSpace(op.Token) != "", strings.TrimSpace(np.Token) != ""
	op.Token, np.Token = "", ""
	if !reflect.DeepEqual(op, np) || oTok != nTok {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", np.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(np.Addr)),
			logx.String("pprof.prefix", strings.TrimSpace(np.Prefix)),
			logx.Bool("pprof.token_set", nTok),
			logx.Bool("pprof.allow_insecure", np.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// diffBackgroundJobs returns the names of jobs added, removed or modified.
func diffBackgroundJobs(oldJobs, newJobs []BackgroundJob) []string {
	index := func(js []BackgroundJob) map[string]BackgroundJob {
		m := make(map[string]BackgroundJob, len(js))
		for _, j := range js {
			m[strings.TrimSpace(j.Name)] = j
		}
		return m
	}
	om, nm := index(oldJobs), index(newJobs)

	var out []string
	for name, o := range om {
		if n, ok := nm[name]; !ok || o != n {
			out = append(out, name)
		}
	}
	for name := range nm {
		if _, ok := om[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
