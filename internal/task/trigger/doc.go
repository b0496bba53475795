// Package trigger submits recurring background jobs (cron, interval, once)
// into the job scheduler.
//
// The trigger service only decides when; every firing becomes one SubmitJob
// call. A firing is skipped while the previous run of the same trigger is
// still pending.
package trigger
