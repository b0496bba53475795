package engine

import "errors"

var (
	// ErrStopped is returned by submissions while the scheduler is not running,
	// and recorded on queued jobs discarded by Stop.
	ErrStopped = errors.New("job scheduler stopped")
	// ErrStopping is recorded on a job abandoned while still waiting for its dependencies.
	ErrStopping = errors.New("job scheduler stopping")
	// ErrWorkerContext is returned by main-thread calls made from a job body.
	ErrWorkerContext = errors.New("job scheduler: main-thread call from a worker")
)
