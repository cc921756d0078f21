// Package model implements the per-model finite state machine and its
// ConnectedModel record. States are a tagged enum, transitions are a pure
// (State, Event) -> (State, []Effect) function, and side effects are
// returned for the caller (orchestrator) to apply rather than invoked
// inline -- matching aistore's xact FSM-by-data (no inheritance, no
// coroutine yields) and reb's explicit-stage style (reb/status.go).
package model

import (
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// State is one of the states in the model's registration-through-done lifecycle.
type State int

const (
	StateRegistration State = iota
	StateIdle
	StateNewTime
	StatePendingMoreUpdates
	StateUpdating
	StateProcessPendingQuit
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRegistration:
		return "Registration"
	case StateIdle:
		return "Idle"
	case StateNewTime:
		return "NewTime"
	case StatePendingMoreUpdates:
		return "PendingMoreUpdates"
	case StateUpdating:
		return "Updating"
	case StateProcessPendingQuit:
		return "ProcessPendingQuit"
	case StateFinalizing:
		return "Finalizing"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// EventKind distinguishes commands the orchestrator issues from responses
// a model returns.
type EventKind int

const (
	EvReady EventKind = iota
	EvCmdNewTime
	EvCmdUpdate
	EvCmdEnd
	EvRespAck
	EvRespResult
	EvRespError
	EvAnySubscribedToBusyResolved // re-check trigger for PendingMoreUpdates
)

type Event struct {
	Kind   EventKind
	Update *wire.UpdateBody // set for EvCmdUpdate
	Result *wire.ResultBody // set for EvRespResult
	Err    error            // set for EvRespError: the model-reported failure reason
}

// EffectKind names a side effect the orchestrator must carry out after a
// transition; effects are queued and applied by the caller, never invoked
// inline from inside Transition.
type EffectKind int

const (
	EffSendNewTime EffectKind = iota
	EffSendUpdateOrSeries
	EffSendEnd
	EffMarkFailed
	EffNone
)

type Effect struct {
	Kind EffectKind
}

// SubscriberBusyFunc reports whether any model M is subscribed to is
// currently busy -- the cascade-gate check consulted before draining a
// PendingMoreUpdates model.
type SubscriberBusyFunc func() bool

// Transition applies one event to the current state and returns the next
// state plus the effects the caller must perform. anySubscribedToBusy is
// only consulted when re-evaluating ProcessPendingUpdates (i.e. whenever
// the model has pending_updates to drain).
func Transition(cur State, ev Event, anySubscribedToBusy SubscriberBusyFunc) (State, []Effect) {
	switch cur {
	case StateRegistration:
		if ev.Kind == EvReady {
			return StateIdle, nil
		}
		return StateDone, []Effect{{Kind: EffMarkFailed}}

	case StateIdle:
		switch ev.Kind {
		case EvCmdNewTime:
			return StateNewTime, []Effect{{Kind: EffSendNewTime}}
		case EvCmdUpdate:
			return dispatchOrWait(anySubscribedToBusy)
		case EvCmdEnd:
			return StateProcessPendingQuit, []Effect{{Kind: EffSendEnd}}
		default:
			return StateDone, []Effect{{Kind: EffMarkFailed}, {Kind: EffSendEnd}}
		}

	case StateNewTime:
		if ev.Kind == EvRespAck {
			return StateIdle, nil
		}
		return protocolViolation()

	case StatePendingMoreUpdates:
		if ev.Kind == EvAnySubscribedToBusyResolved {
			return dispatchOrWait(anySubscribedToBusy)
		}
		// new commands enqueue rather than transition while waiting
		return cur, nil

	case StateUpdating:
		switch ev.Kind {
		case EvRespResult:
			return StateIdle, nil
		case EvRespError:
			return StateDone, []Effect{{Kind: EffMarkFailed}}
		default:
			return protocolViolation()
		}

	case StateProcessPendingQuit:
		// already sent END; only a response (ACK) advances
		if ev.Kind == EvRespAck {
			return StateDone, nil
		}
		return cur, nil

	case StateFinalizing:
		if ev.Kind == EvRespAck {
			return StateDone, nil
		}
		return protocolViolation()

	case StateDone:
		return StateDone, nil
	}
	return StateDone, []Effect{{Kind: EffMarkFailed}}
}

func dispatchOrWait(anySubscribedToBusy SubscriberBusyFunc) (State, []Effect) {
	if anySubscribedToBusy != nil && anySubscribedToBusy() {
		return StatePendingMoreUpdates, nil
	}
	return StateUpdating, []Effect{{Kind: EffSendUpdateOrSeries}}
}

func protocolViolation() (State, []Effect) {
	return StateProcessPendingQuit, []Effect{{Kind: EffMarkFailed}, {Kind: EffSendEnd}}
}
