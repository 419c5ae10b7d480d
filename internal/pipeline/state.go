package pipeline

// State is a step of the run lifecycle.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateProcessing
	StateMuxing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateProcessing:
		return "processing"
	case StateMuxing:
		return "muxing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can occur.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// canTransition encodes the allowed edges of the state machine.
func canTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateIdle:
		return to == StateProbing
	case StateProbing:
		return to == StateProcessing
	case StateProcessing:
		return to == StateMuxing
	case StateMuxing:
		return to == StateDone
	}
	return false
}
