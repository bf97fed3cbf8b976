package engine

// State is the pipeline state. Stopped is initial, Destroying is terminal.
type State int32

const (
	StateStopped State = iota
	StateActive
	StateDestroying
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateActive:
		return "active"
	case StateDestroying:
		return "destroying"
	default:
		return "unknown"
	}
}
