// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers shared by the job-server
// client.
//
// Response helpers (ReadResponse, DecodeResponse, ErrorBody) bound every
// body read at MaxResponseSize. Session logs and statement outputs can be
// large, but they are still JSON documents read in one piece; anything
// past the bound indicates a misbehaving server.
//
// IsRetryableNetError classifies transport errors that are worth a
// bounded retry: timeouts, refused or reset connections, and bodies cut
// short mid-read.
package netutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// MaxResponseSize is the bound on JSON response body reads: 64 MB.
const MaxResponseSize int64 = 64 << 20

// maxErrorBody caps how much of an error body is echoed into error
// messages. Job servers sometimes answer with full HTML error pages.
const maxErrorBody = 1024

// ReadResponse reads a JSON response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON response body (up to MaxResponseSize
// bytes) and decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an error response body and returns it as a string
// for diagnostics, truncated to a readable length. Read errors are
// ignored: a partial body is still useful in a message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return TruncateBody(data)
}

// TruncateBody renders data as a string of at most maxErrorBody bytes,
// marking the cut.
func TruncateBody(data []byte) string {
	if len(data) <= maxErrorBody {
		return string(data)
	}
	return string(data[:maxErrorBody]) + "...(truncated)"
}

// IsRetryableNetError reports whether err is a transport failure that
// may succeed if the request is repeated. Context cancellation is never
// retryable: the caller asked to stop.
func IsRetryableNetError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNREFUSED || errno == syscall.ECONNRESET || errno == syscall.EPIPE
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
