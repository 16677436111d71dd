package reader

import "github.com/tsawler/inkpage/fsm"

// State is the reader's screen state.
type State int

const (
	StateLoading State = iota
	StateReady
	StateError
	StateExited
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

var transitions = fsm.Table[State]{
	StateLoading: {StateReady, StateError, StateExited},
	StateReady:   {StateLoading, StateError, StateExited},
	StateError:   {StateExited},
}
