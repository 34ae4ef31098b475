// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategories(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		usage     bool
		invariant bool
		transport bool
	}{
		{"usage", Usage("unknown language %q", "cobol"), true, false, false},
		{"invariant", Invariant("session already started"), false, true, false},
		{"transport", Transport("create session: %w", context.DeadlineExceeded), false, false, true},
		{"wrapped usage", fmt.Errorf("configure: %w", Usage("force required")), true, false, false},
		{"plain", errors.New("plain"), false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsUsage(test.err); got != test.usage {
				t.Errorf("IsUsage = %v, want %v", got, test.usage)
			}
			if got := IsInvariant(test.err); got != test.invariant {
				t.Errorf("IsInvariant = %v, want %v", got, test.invariant)
			}
			if got := IsTransport(test.err); got != test.transport {
				t.Errorf("IsTransport = %v, want %v", got, test.transport)
			}
		})
	}
}

func TestTransportKeepsChain(t *testing.T) {
	err := Transport("delete session 4: %w", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("errors.Is should find the wrapped context error")
	}
	if err.Error() != "delete session 4: context canceled" {
		t.Errorf("Error() = %q", err.Error())
	}
}
