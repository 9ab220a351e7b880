package connections

import (
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
)

// State is the lifecycle position of one session and kind.
type State int

const (
	StateDisconnected State = iota
	StatePendingAuthorization
	StateConnected
	// StateRefreshing is held only for the duration of a refresh; it is never stored.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StatePendingAuthorization:
		return "pending_authorization"
	case StateConnected:
		return "connected"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

type Event string

const (
	EventConnect           Event = "connect"
	EventCallbackSucceeded Event = "callback_succeeded"
	EventCallbackFailed    Event = "callback_failed"
	EventRefreshStarted    Event = "refresh_started"
	EventRefreshSucceeded  Event = "refresh_succeeded"
	EventRefreshFailed     Event = "refresh_failed"
	EventDisconnect        Event = "disconnect"
)

var transitions = map[State]map[Event]State{
	StateDisconnected: {
		EventConnect:    StatePendingAuthorization,
		EventDisconnect: StateDisconnected,
	},
	StatePendingAuthorization: {
		EventConnect:           StatePendingAuthorization,
		EventCallbackSucceeded: StateConnected,
		EventCallbackFailed:    StateDisconnected,
		EventDisconnect:        StateDisconnected,
	},
	StateConnected: {
		EventConnect:        StatePendingAuthorization,
		EventRefreshStarted: StateRefreshing,
		EventDisconnect:     StateDisconnected,
	},
	StateRefreshing: {
		EventRefreshSucceeded: StateConnected,
		EventRefreshFailed:    StateDisconnected,
		EventDisconnect:       StateDisconnected,
	},
}

// Transition returns the state reached from `from` on ev, or ErrIllegalTransition.
func Transition(from State, ev Event) (State, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, errors.Wrapf(errors.ErrIllegalTransition, "%s on %s", ev, from)
	}
	return to, nil
}

// StateOf derives the stored state for kind k. An authorization in flight for k
// takes precedence over an existing connection.
func (r *Record) StateOf(k Kind) State {
	if r == nil {
		return StateDisconnected
	}
	if r.Pending != nil && r.Pending.Kind == k {
		return StatePendingAuthorization
	}
	if r.Connection(k).Usable() {
		return StateConnected
	}
	return StateDisconnected
}
