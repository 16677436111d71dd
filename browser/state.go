package browser

import "github.com/tsawler/inkpage/fsm"

// State is the browser's screen state.
type State int

const (
	StateCheckingPrerequisite State = iota
	StateLoading
	StateBrowsing
	StateDownloading
	StateError
	// StateComplete ends a sync download.
	StateComplete
	StateExited
)

func (s State) String() string {
	switch s {
	case StateCheckingPrerequisite:
		return "checking-prerequisite"
	case StateLoading:
		return "loading"
	case StateBrowsing:
		return "browsing"
	case StateDownloading:
		return "downloading"
	case StateError:
		return "error"
	case StateComplete:
		return "complete"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

var transitions = fsm.Table[State]{
	StateCheckingPrerequisite: {StateLoading, StateDownloading, StateComplete, StateError, StateExited},
	StateLoading:              {StateBrowsing, StateError, StateExited},
	StateBrowsing:             {StateLoading, StateDownloading, StateComplete, StateError, StateExited},
	StateDownloading:          {StateBrowsing, StateComplete, StateError},
	StateError:                {StateCheckingPrerequisite, StateLoading, StateExited},
	StateComplete:             {StateBrowsing, StateExited},
}
