package model

// Phase is the session lifecycle state. Transitions are owned exclusively
// by the session controller and only ever move forward:
// Initializing → Active → {Violated → Active|Terminated, Terminated}.
type Phase int

const (
	Initializing Phase = 0
	Active       Phase = 1
	Violated     Phase = 2
	Terminated   Phase = 3
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "INITIALIZING"
	case Active:
		return "ACTIVE"
	case Violated:
		return "VIOLATED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the phase is absorbing. Once Terminated,
// no guard evaluation ever returns Allow again.
func (p Phase) Terminal() bool {
	return p == Terminated
}
