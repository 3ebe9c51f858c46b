package call

import "slices"

// State is the lifecycle state of the single live call record.
type State string

const (
	StateIdle         State = "IDLE"
	StateIncoming     State = "INCOMING"
	StateOutgoing     State = "OUTGOING"
	StateConnected    State = "CONNECTED"
	StateDisconnected State = "DISCONNECTED"
)

// validTransitions defines allowed state transitions. Teardown always passes
// through DISCONNECTED before the record is reset at IDLE.
var validTransitions = map[State][]State{
	StateIdle:         {StateIncoming, StateOutgoing},
	StateIncoming:     {StateConnected, StateDisconnected},
	StateOutgoing:     {StateConnected, StateDisconnected},
	StateConnected:    {StateDisconnected},
	StateDisconnected: {StateIdle},
}

// canTransition reports whether from → to is an allowed transition.
func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// active reports whether the state denotes a live pre-teardown call.
func (s State) active() bool {
	switch s {
	case StateIncoming, StateOutgoing, StateConnected:
		return true
	}
	return false
}
