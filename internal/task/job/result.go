package job

// Result is the terminal classification of a Counter.
type Result int

const (
	ResultPending Result = iota
	ResultSuccess
	// ResultFailed is recorded when a job body returns an error or panics.
	ResultFailed
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultPending:
		return "pending"
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	case ResultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// sticky reports whether r can no longer be overwritten.
func (r Result) sticky() bool {
	return r == ResultFailed || r == ResultCancelled
}

func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
