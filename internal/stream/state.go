package stream

// ConnState is the lifecycle state of the push channel.
//
//	disconnected -> connecting -> open
//	open | connecting -> error -> reconnecting -> connecting
//
// Any state moves to disconnected when the subscription's context ends.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateError
	StateReconnecting
)

var connStateNames = map[ConnState]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateOpen:         "open",
	StateError:        "error",
	StateReconnecting: "reconnecting",
}

func (s ConnState) String() string {
	if name, ok := connStateNames[s]; ok {
		return name
	}
	return "invalid"
}

// AllConnStates lists every state name, for gauges.
func AllConnStates() []string {
	return []string{"disconnected", "connecting", "open", "error", "reconnecting"}
}

var connTransitions = map[ConnState][]ConnState{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateOpen, StateError, StateDisconnected},
	StateOpen:         {StateError, StateDisconnected},
	StateError:        {StateReconnecting, StateDisconnected},
	StateReconnecting: {StateConnecting, StateDisconnected},
}

// CanTransition reports whether the channel may move from s to next.
func (s ConnState) CanTransition(next ConnState) bool {
	for _, allowed := range connTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
