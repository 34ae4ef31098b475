// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"syscall"
	"testing"
)

func TestReadResponse(t *testing.T) {
	t.Run("normal body", func(t *testing.T) {
		data, err := ReadResponse(bytes.NewReader([]byte(`{"state":"idle"}`)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"state":"idle"}` {
			t.Fatalf("got %q, want %q", data, `{"state":"idle"}`)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		if _, err := ReadResponse(&failReader{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		var result struct {
			ID    int    `json:"id"`
			State string `json:"state"`
		}
		if err := DecodeResponse(strings.NewReader(`{"id":7,"state":"busy"}`), &result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ID != 7 || result.State != "busy" {
			t.Fatalf("got %+v, want id=7 state=busy", result)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if err := DecodeResponse(strings.NewReader(`<html>`), &struct{}{}); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		if err := DecodeResponse(&failReader{}, &struct{}{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestErrorBody(t *testing.T) {
	t.Run("short body unchanged", func(t *testing.T) {
		if got := ErrorBody(strings.NewReader(`"Session '3' not found."`)); got != `"Session '3' not found."` {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("long body truncated", func(t *testing.T) {
		got := ErrorBody(strings.NewReader(strings.Repeat("x", 5000)))
		if !strings.HasSuffix(got, "...(truncated)") {
			t.Fatalf("expected truncation marker, got suffix %q", got[len(got)-20:])
		}
		if len(got) != maxErrorBody+len("...(truncated)") {
			t.Fatalf("len = %d, want %d", len(got), maxErrorBody+len("...(truncated)"))
		}
	})

	t.Run("read error returns empty", func(t *testing.T) {
		if got := ErrorBody(&failReader{}); got != "" {
			t.Fatalf("expected empty from failing reader, got %q", got)
		}
	})
}

func TestIsRetryableNetError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), false},
		{"unexpected EOF", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"plain error", fmt.Errorf("bad request"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsRetryableNetError(test.err); got != test.want {
				t.Errorf("IsRetryableNetError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

// failReader always returns an error on Read.
type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
