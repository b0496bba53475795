package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "16ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Engine     EngineConfig     `json:"engine"`
	Frames     FramesConfig     `json:"frames"`
	Background BackgroundConfig `json:"background"`
	Pprof      PprofConfig      `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig controls the job scheduler.
//
// Defaults (when fields are omitted/zero):
//   - workers: CPU count - 1, at least 1
//   - history_size: 200
//   - failure_log_every: "1s", failure_log_burst: 10
//   - wait_all_poll: "1ms"
//   - stop_timeout: "5s"
type EngineConfig struct {
	Workers         int    `json:"workers,omitempty"`
	HistorySize     int    `json:"history_size,omitempty"`
	FailureLogEvery string `json:"failure_log_every,omitempty"`
	FailureLogBurst int    `json:"failure_log_burst,omitempty"`
	WaitAllPoll     string `json:"wait_all_poll,omitempty"`

	// StopTimeout bounds the hard stop on shutdown.
	StopTimeout string `json:"stop_timeout,omitempty"`
}

// FramesConfig drives the fixed-rate frame loop run by "jobsys run".
//
// Each frame opens with BeginFrame, fans out FanOut High priority jobs, each of
// which runs a parallel-for over Items indices, queues MainThreadJobs
// main-thread jobs and closes with EndFrame.
type FramesConfig struct {
	Enabled bool `json:"enabled"`
	// Interval is the frame period (default "16ms").
	Interval string `json:"interval,omitempty"`
	FanOut   int    `json:"fan_out,omitempty"`
	Items    int    `json:"items,omitempty"`
	// Granularity is the parallel-for chunk size; 0 picks one automatically.
	Granularity    int `json:"granularity,omitempty"`
	MainThreadJobs int `json:"main_thread_jobs,omitempty"`
	// ItemCost is the simulated work per index (busy loop), e.g. "2us".
	ItemCost string `json:"item_cost,omitempty"`
}

// BackgroundConfig controls recurring background jobs submitted by the trigger service.
type BackgroundConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone is an IANA name used for cron expressions.
	Timezone      string          `json:"timezone,omitempty"`
	StartupSpread bool            `json:"startup_spread,omitempty"`
	Jobs          []BackgroundJob `json:"jobs,omitempty"`
}

// BackgroundJob is one recurring job.
//
// Kind is one of:
//   - "sleep": sleep for Duration
//   - "parallel": parallel-for over Items indices, Duration of work each
//   - "stats": log the job scheduler stats
type BackgroundJob struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Priority string `json:"priority,omitempty"`
	Kind     string `json:"kind"`
	Duration string `json:"duration,omitempty"`
	Items    int    `json:"items,omitempty"`
}

// PprofConfig controls the optional debug HTTP server (pprof + /debug/jobs).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts. WriteTimeout defaults to 0 (disabled) so /profile works.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
	MemProfileRate       int `json:"mem_profile_rate,omitempty"`
}
