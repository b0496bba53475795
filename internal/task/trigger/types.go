package trigger

import (
	"context"
	"time"

	"jobsys/internal/task/job"
)

type Config struct {
	Enabled bool
	// Timezone is an IANA name used for cron expressions. Empty means Local.
	Timezone string
	// StartupSpread jitters the first run of interval triggers.
	StartupSpread bool
}

// Submitter is the part of the job scheduler the trigger service needs.
type Submitter interface {
	SubmitJob(ctx context.Context, d job.Desc) (job.Handle, error)
}

// Info describes one registered trigger.
type Info struct {
	Name     string       `json:"name"`
	Spec     string       `json:"spec"`
	Priority job.Priority `json:"priority"`
	Next     time.Time    `json:"next,omitempty"`
	Prev     time.Time    `json:"prev,omitempty"`
	Fired    uint64       `json:"fired"`
	Skipped  uint64       `json:"skipped"`
	Last     string       `json:"last,omitempty"`
	Once     bool         `json:"once,omitempty"`
}

type Snapshot struct {
	Enabled  bool   `json:"enabled"`
	Running  bool   `json:"running"`
	Timezone string `json:"timezone"`
	Triggers []Info `json:"triggers"`
}

// SkipEvent is published when a firing is skipped because the previous run is pending.
type SkipEvent struct {
	Name string `json:"name"`
}
