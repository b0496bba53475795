package job

import (
	"context"
	"errors"
)

var (
	ErrNoWork        = errors.New("job has no work function")
	ErrAmbiguousWork = errors.New("job sets both Func and CancellableFunc")
	ErrMissingToken  = errors.New("job has CancellableFunc but no Token")
)

// Func is a plain job body. A non-nil error marks the job Failed.
//
// ctx carries the executing worker; pass it on to nested submissions so they
// stay on the local queue.
type Func func(ctx context.Context) error

// CancellableFunc is a job body that may poll tok to abort early.
type CancellableFunc func(ctx context.Context, tok *CancelToken) error

// Desc is the inert description of one unit of work.
//
// Exactly one of Func and CancellableFunc must be set. CancellableFunc requires Token.
type Desc struct {
	Name string

	Func            Func
	CancellableFunc CancellableFunc

	Priority Priority

	// Deps must all be complete before the body starts.
	// Cycles are not detected.
	Deps []Handle

	// Token, if already cancelled at dispatch time, skips the body and records Cancelled.
	Token *CancelToken

	// MainThreadOnly routes the job to the main-thread queue. It only runs when the
	// main loop calls ProcessMainThreadJobs (or EndFrame).
	MainThreadOnly bool
}

// Validate reports contract violations in d.
func (d Desc) Validate() error {
	switch {
	case d.Func == nil && d.CancellableFunc == nil:
		return ErrNoWork
	case d.Func != nil && d.CancellableFunc != nil:
		return ErrAmbiguousWork
	case d.CancellableFunc != nil && d.Token == nil:
		return ErrMissingToken
	}
	return nil
}
