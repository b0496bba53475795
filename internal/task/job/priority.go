package job

import "strings"

// Priority selects which global queue a job lands in.
//
// The zero value is PriorityNormal so an unset Desc.Priority behaves sensibly.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityLow
)

// NumPriorities is the number of global priority queues.
const NumPriorities = 3

// Index returns the queue slot in scan order: High=0, Normal=1, Low=2.
// Unknown values map to Normal.
func (p Priority) Index() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// PriorityAt is the inverse of Index.
func PriorityAt(idx int) Priority {
	switch idx {
	case 0:
		return PriorityHigh
	case 2:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityNormal || p == PriorityLow
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority accepts "high", "normal" and "low" (case-insensitive).
// Empty input yields PriorityNormal.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	case "low":
		return PriorityLow, true
	default:
		return PriorityNormal, false
	}
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
