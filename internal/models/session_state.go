package models

// SessionState is the lifecycle state of a monitoring session.
type SessionState int32

const (
	SessionIdle SessionState = iota
	SessionRunning
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionRunning:
		return "running"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Counters holds per-session delivery totals.
type Counters struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}
