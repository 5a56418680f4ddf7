package job

// State is the lifecycle position of the controller's current job.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether a job occupies the controller in this state.
func (s State) Busy() bool {
	return s == StateSubmitting || s == StateRunning
}
