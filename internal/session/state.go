package session

import (
	"errors"
	"fmt"
)

// State is the negotiation phase of a session.
type State int

const (
	StateIdle State = iota
	StateAwaitingMedia
	StateReady
	StateNegotiating
	StateConnected
	StateInterrupted // ICE disconnected, may recover on its own
	StateFailed
	StateClosed
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateAwaitingMedia: "awaiting-media",
	StateReady:         "ready",
	StateNegotiating:   "negotiating",
	StateConnected:     "connected",
	StateInterrupted:   "interrupted",
	StateFailed:        "failed",
	StateClosed:        "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrIllegalTransition is returned when a state change is not in the
// transition table.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	StateIdle:          {StateAwaitingMedia, StateClosed},
	StateAwaitingMedia: {StateReady, StateFailed, StateClosed},
	StateReady:         {StateNegotiating, StateClosed},
	StateNegotiating:   {StateConnected, StateReady, StateFailed, StateClosed},
	StateConnected:     {StateInterrupted, StateNegotiating, StateReady, StateFailed, StateClosed},
	StateInterrupted:   {StateConnected, StateNegotiating, StateReady, StateFailed, StateClosed},
	StateFailed:        {StateReady, StateNegotiating, StateClosed},
	StateClosed:        nil,
}

// checkTransition reports whether from → to is allowed. Staying in the same
// state is always allowed, except once closed.
func checkTransition(from, to State) error {
	if from == to && from != StateClosed {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
