// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package livy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ServerError is a non-2xx response from the job server. Callers
// extract it with errors.As:
//
//	var serverErr *livy.ServerError
//	if errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusNotFound { ... }
type ServerError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("livy: %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("livy: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether err carries a 404 from the job server.
func IsNotFound(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusNotFound
}

// serverMessage pulls the human-readable message out of an error body.
// Livy answers with {"msg": "..."}; proxies in front of it often answer
// with plain text or HTML.
func serverMessage(body string) string {
	var envelope struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil {
		if envelope.Msg != "" {
			return envelope.Msg
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(body)
}
