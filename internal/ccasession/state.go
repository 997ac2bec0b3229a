package ccasession

import "fmt"

// State is the server side Credit-Control session state.
type State int

const (
	Idle State = iota
	PendingOpen
	Open
	PendingTermination
	Terminated
)

var stateNames = map[State]string{
	Idle:               "IDLE",
	PendingOpen:        "PENDING_OPEN",
	Open:               "OPEN",
	PendingTermination: "PENDING_TERMINATION",
	Terminated:         "TERMINATED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func ParseState(s string) (State, error) {
	for state, name := range stateNames {
		if name == s {
			return state, nil
		}
	}
	return Idle, fmt.Errorf("unknown session state %q", s)
}

// Active reports whether the session holds granted quota.
func (s State) Active() bool {
	return s == Open || s == PendingTermination
}
