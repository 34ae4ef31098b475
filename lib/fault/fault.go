// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault classifies the errors the session controller and its
// callers raise, so the command surface can decide between "fix your
// input", "this is a bug in the caller", and "the server is unreachable"
// without parsing message text.
//
// Remote execution failures (the submitted code raised, the session
// died) are deliberately absent: they are ordinary outcomes and travel
// as result.Failure values, never as errors.
package fault

import (
	"errors"
	"fmt"
)

// Category is the class of a fault.
type Category string

const (
	// CategoryUsage is an invalid argument or flag combination: an
	// unknown language, a config change without force while a session
	// is live, a forced delete of the caller's own session, a cleanup
	// without force. Always raised before any remote call.
	CategoryUsage Category = "usage"

	// CategoryInvariant is a contract breach by the caller, such as
	// changing the language of a started session.
	CategoryInvariant Category = "invariant"

	// CategoryTransport is a network, timeout, or protocol failure
	// talking to the job server, after any bounded retry.
	CategoryTransport Category = "transport"
)

// Error is a categorized error. It wraps the underlying error so
// errors.Is and errors.As still see the full chain.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error { return e.Err }

// Usage creates a usage fault.
func Usage(format string, args ...any) *Error {
	return &Error{Category: CategoryUsage, Err: fmt.Errorf(format, args...)}
}

// Invariant creates an invariant-violation fault.
func Invariant(format string, args ...any) *Error {
	return &Error{Category: CategoryInvariant, Err: fmt.Errorf(format, args...)}
}

// Transport creates a transport fault. Use %w in format to keep the
// underlying network error reachable.
func Transport(format string, args ...any) *Error {
	return &Error{Category: CategoryTransport, Err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category of the first *Error in err's chain,
// or "" if there is none.
func CategoryOf(err error) Category {
	var faultErr *Error
	if errors.As(err, &faultErr) {
		return faultErr.Category
	}
	return ""
}

// IsUsage reports whether err is a usage fault.
func IsUsage(err error) bool { return CategoryOf(err) == CategoryUsage }

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool { return CategoryOf(err) == CategoryInvariant }

// IsTransport reports whether err is a transport fault.
func IsTransport(err error) bool { return CategoryOf(err) == CategoryTransport }
