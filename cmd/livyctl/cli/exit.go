// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/livyctl/lib/fault"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have already written its
// own output, as when a statement fails on the server and its error
// has been shown.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCode maps err to a process exit status and reports whether the
// error still needs printing. An [ExitError] has already been
// reported; usage faults exit with [ExitUsage].
func ExitCode(err error) (code int, report bool) {
	if err == nil {
		return ExitOK, false
	}
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.Code, false
	}
	if fault.IsUsage(err) {
		return ExitUsage, true
	}
	return ExitFailure, true
}
