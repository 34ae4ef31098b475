// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"testing"
)

func TestStateStarted(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateNotCreated, false},
		{StateStarting, true},
		{StateIdle, true},
		{StateBusy, true},
		{StateError, true},
		{StateDead, true},
		{StateDeleted, false},
	}
	for _, test := range tests {
		if got := test.state.Started(); got != test.want {
			t.Errorf("%s.Started() = %v, want %v", test.state, got, test.want)
		}
	}
}

func TestFromRemote(t *testing.T) {
	tests := map[string]State{
		"not_started":   StateStarting,
		"starting":      StateStarting,
		"recovering":    StateStarting,
		"idle":          StateIdle,
		"busy":          StateBusy,
		"shutting_down": StateBusy,
		"error":         StateError,
		"dead":          StateDead,
		"killed":        StateDead,
		"success":       StateDead,
		"something_new": StateError,
	}
	for remote, want := range tests {
		if got := FromRemote(remote); got != want {
			t.Errorf("FromRemote(%q) = %s, want %s", remote, got, want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	legal := [][2]State{
		{StateNotCreated, StateStarting},
		{StateStarting, StateIdle},
		{StateIdle, StateBusy},
		{StateBusy, StateIdle},
		{StateBusy, StateError},
		{StateError, StateIdle},
		{StateIdle, StateDead},
		{StateDead, StateDeleted},
		{StateNotCreated, StateDeleted},
	}
	for _, step := range legal {
		if !CanTransition(step[0], step[1]) {
			t.Errorf("%s → %s rejected", step[0], step[1])
		}
	}

	illegal := [][2]State{
		{StateNotCreated, StateIdle},
		{StateDead, StateIdle},
		{StateDeleted, StateStarting},
		{StateIdle, StateStarting},
	}
	for _, step := range illegal {
		if CanTransition(step[0], step[1]) {
			t.Errorf("%s → %s accepted", step[0], step[1])
		}
	}
}

func TestRecordTransition(t *testing.T) {
	record := NewRecord("main", "http://livy:8998", "abc", Config{Kind: KindPySpark})
	if err := record.Transition(StateIdle); err == nil {
		t.Fatal("not_created → idle accepted")
	} else {
		var transitionErr *TransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("error %T is not *TransitionError", err)
		}
		if transitionErr.From != StateNotCreated || transitionErr.To != StateIdle {
			t.Errorf("TransitionError = %+v", transitionErr)
		}
	}
	if record.State() != StateNotCreated {
		t.Errorf("state changed after rejected transition: %s", record.State())
	}
	for _, state := range []State{StateStarting, StateIdle, StateBusy, StateIdle} {
		if err := record.Transition(state); err != nil {
			t.Fatalf("Transition(%s): %v", state, err)
		}
	}
}
