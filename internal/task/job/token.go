package job

import "sync/atomic"

// CancelToken is a cooperative abort flag.
//
// The engine checks it once, right before a job body would start. A running body
// only stops early if it polls IsCancelled itself.
//
// A nil *CancelToken is valid and never reports cancellation.
type CancelToken struct {
	cancelled atomic.Bool
}

func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel signals the token. Calling it more than once is harmless.
func (t *CancelToken) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
}

func (t *CancelToken) IsCancelled() bool {
	if t == nil {
		return false
	}
	return t.cancelled.Load()
}
