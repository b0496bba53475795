// Package job holds the caller-facing primitives of the job engine.
//
// These types are inert on their own:
//   - Counter counts outstanding work and records a terminal Result.
//   - Handle is a copyable, observe-only view of a Counter.
//   - CancelToken is a cooperative abort flag shared by submitter and job body.
//   - Desc describes one unit of work before it is submitted.
//
// Scheduling lives in internal/task/engine.
package job
