// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package livy

import (
	"net/http"
	"slices"
	"time"
)

// RetryPolicy bounds how the client retries idempotent requests. POST
// requests are never retried: resubmitting a create or a statement
// could run it twice.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt. Each later
	// wait doubles, capped at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RetryStatusCodes are the HTTP statuses treated as transient.
	RetryStatusCodes []int
}

// DefaultRetryPolicy returns three attempts with 1s/2s waits on gateway
// and availability errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		RetryStatusCodes: []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

func (p RetryPolicy) attempts(method string) int {
	if method == http.MethodPost || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) retryableStatus(code int) bool {
	return slices.Contains(p.RetryStatusCodes, code)
}

// backoff returns the wait before attempt number attempt (1-based, so
// the wait before the second attempt is backoff(1)).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := p.InitialBackoff
	if wait <= 0 {
		wait = time.Second
	}
	for range attempt - 1 {
		wait *= 2
		if p.MaxBackoff > 0 && wait >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && wait > p.MaxBackoff {
		return p.MaxBackoff
	}
	return wait
}
