package eventbus

// Event types published by jobsys components.
const (
	TypeJobFailed    = "job.failed"
	TypeJobCancelled = "job.cancelled"
	TypeFrameBegin   = "frame.begin"
	TypeFrameEnd     = "frame.end"

	TypeTriggerSkipped = "trigger.skipped"
	TypeConfigApplied  = "config.applied"
)
