// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package result provides the tagged outcome type returned by operations
// whose failure is an expected, user-recoverable condition: a statement
// that raised, a session with no logs yet, a session that died during
// start. Such failures carry a message for the display sink and are
// never Go errors; transport problems still are.
//
// A Result is either a success holding a payload or a failure holding a
// message. The zero Result is a failure with an empty message, so an
// uninitialized value can never be mistaken for success.
package result

import "fmt"

// Result is the outcome of a remote operation: payload on success,
// message on failure.
type Result[T any] struct {
	value     T
	message   string
	succeeded bool
}

// Success returns a successful Result carrying value.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value, succeeded: true}
}

// Failure returns a failed Result carrying message.
func Failure[T any](message string) Result[T] {
	return Result[T]{message: message}
}

// Failuref is Failure with fmt.Sprintf formatting.
func Failuref[T any](format string, args ...any) Result[T] {
	return Failure[T](fmt.Sprintf(format, args...))
}

// Succeeded reports which variant r is.
func (r Result[T]) Succeeded() bool { return r.succeeded }

// Value returns the payload and true for a success, or the zero value
// and false for a failure.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.succeeded
}

// Message returns the failure message. Empty for a success.
func (r Result[T]) Message() string { return r.message }

// Match calls exactly one of onSuccess or onFailure. Callers that route
// to a display sink use this so neither branch can be forgotten.
func (r Result[T]) Match(onSuccess func(T), onFailure func(string)) {
	if r.succeeded {
		onSuccess(r.value)
		return
	}
	onFailure(r.message)
}

func (r Result[T]) String() string {
	if r.succeeded {
		return fmt.Sprintf("success(%v)", r.value)
	}
	return fmt.Sprintf("failure(%s)", r.message)
}
