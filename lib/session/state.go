// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "fmt"

// State is the controller's view of a session's lifecycle:
//
//	not_created → starting → idle ⇄ busy → (error | dead)
//
// deleted is terminal and reachable from every state. error is not
// terminal locally: an interrupted poll marks a record error, and the
// next status poll may find the session idle again.
type State string

const (
	StateNotCreated State = "not_created"
	StateStarting   State = "starting"
	StateIdle       State = "idle"
	StateBusy       State = "busy"
	StateError      State = "error"
	StateDead       State = "dead"
	StateDeleted    State = "deleted"
)

// Started is the binary projection callers see: everything except
// not_created and deleted counts as a started session.
func (s State) Started() bool {
	return s != StateNotCreated && s != StateDeleted && s != ""
}

// Ready reports whether statements can be submitted.
func (s State) Ready() bool { return s == StateIdle }

// Gone reports whether the remote interpreter no longer exists.
func (s State) Gone() bool { return s == StateDead || s == StateDeleted }

var transitions = map[State][]State{
	StateNotCreated: {StateStarting},
	StateStarting:   {StateStarting, StateIdle, StateBusy, StateError, StateDead},
	StateIdle:       {StateIdle, StateBusy, StateError, StateDead},
	StateBusy:       {StateBusy, StateIdle, StateError, StateDead},
	StateError:      {StateError, StateIdle, StateBusy, StateDead},
	StateDead:       {StateDead},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	if to == StateDeleted {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// FromRemote maps a job-server session state onto the lifecycle.
// Unknown states map to error so they are never mistaken for ready.
func FromRemote(remote string) State {
	switch remote {
	case "not_started", "starting", "recovering":
		return StateStarting
	case "idle":
		return StateIdle
	case "busy", "shutting_down":
		return StateBusy
	case "error":
		return StateError
	case "dead", "killed", "success":
		return StateDead
	default:
		return StateError
	}
}

// TransitionError reports an illegal lifecycle step.
type TransitionError struct {
	Session string
	From    State
	To      State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session %q: illegal state transition %s → %s", e.Session, e.From, e.To)
}
