package engine

import (
	"time"

	"jobsys/internal/runtime/supervisor"
	"jobsys/internal/task/job"
)

// Config controls the job scheduler.
//
// The app layer maps config.engine into this struct.
type Config struct {
	// Workers is the pool size. <= 0 derives NumCPU-1, floored at 1.
	Workers int

	// HistorySize bounds the ring of failed/cancelled jobs kept for Snapshot.
	HistorySize int

	// FailureLogEvery and FailureLogBurst rate-limit job failure logs.
	// Failures beyond the limit are still recorded, only the log line is dropped.
	FailureLogEvery time.Duration
	FailureLogBurst int

	// WaitAllPoll is the sleep between quiescence checks in WaitAll.
	WaitAllPoll time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers()
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	if c.FailureLogEvery <= 0 {
		c.FailureLogEvery = time.Second
	}
	if c.FailureLogBurst <= 0 {
		c.FailureLogBurst = 10
	}
	if c.WaitAllPoll <= 0 {
		c.WaitAllPoll = time.Millisecond
	}
	return c
}

// ProfileFunc receives the name and wall time of every executed job body.
type ProfileFunc func(name string, d time.Duration)

// Stats are cumulative since New (or the last Close).
type Stats struct {
	TotalExecuted   uint64        `json:"total_executed"`
	TotalStolen     uint64        `json:"total_stolen"`
	AverageDuration time.Duration `json:"average_duration"`
}

type HistoryItem struct {
	Name     string        `json:"name"`
	Result   string        `json:"result"`
	Error    string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
}

// JobEvent is emitted on the event bus for failed and cancelled jobs.
type JobEvent struct {
	Name     string        `json:"name"`
	Result   job.Result    `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FrameEvent is emitted on the event bus at frame boundaries.
type FrameEvent struct {
	Frame    uint64        `json:"frame"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Running bool `json:"running"`
	Workers int  `json:"workers"`

	// Queue lengths, indexed High, Normal, Low.
	Global [job.NumPriorities]int `json:"global"`
	Local  []int                  `json:"local"`
	Main   int                    `json:"main"`

	// Pending counts every accepted job that has not finished yet.
	Pending int64 `json:"pending"`
	Active  int64 `json:"active"`

	Frame     uint64 `json:"frame"`
	FrameOpen bool   `json:"frame_open"`

	Stats           Stats  `json:"stats"`
	DroppedFailLogs uint64 `json:"dropped_fail_logs"`

	Supervisor supervisor.Snapshot `json:"supervisor"`
	History    []HistoryItem       `json:"history"`
}
