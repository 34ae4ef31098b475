// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package livy

import "encoding/json"

// Session is the wire form of an interactive session, as returned by
// GET /sessions/{id} and inside GET /sessions.
type Session struct {
	ID        int               `json:"id"`
	Name      string            `json:"name,omitempty"`
	AppID     string            `json:"appId,omitempty"`
	Owner     string            `json:"owner,omitempty"`
	ProxyUser string            `json:"proxyUser,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	State     string            `json:"state"`
	Log       []string          `json:"log,omitempty"`
	AppInfo   map[string]string `json:"appInfo,omitempty"`
}

// SessionList is the wire form of GET /sessions.
type SessionList struct {
	From     int       `json:"from"`
	Total    int       `json:"total"`
	Sessions []Session `json:"sessions"`
}

// SessionState is the wire form of GET /sessions/{id}/state.
type SessionState struct {
	ID    int    `json:"id"`
	State string `json:"state"`
}

// SessionLog is the wire form of GET /sessions/{id}/log.
type SessionLog struct {
	ID    int      `json:"id"`
	From  int      `json:"from"`
	Total int      `json:"total"`
	Log   []string `json:"log"`
}

// Statement states reported by the job server.
const (
	StatementWaiting    = "waiting"
	StatementRunning    = "running"
	StatementAvailable  = "available"
	StatementError      = "error"
	StatementCancelling = "cancelling"
	StatementCancelled  = "cancelled"
)

// StatementRequest is the body of POST /sessions/{id}/statements. Kind
// is optional; an empty kind runs in the session's own interpreter.
type StatementRequest struct {
	Code string `json:"code"`
	Kind string `json:"kind,omitempty"`
}

// Statement is the wire form of a submitted statement.
type Statement struct {
	ID       int              `json:"id"`
	Code     string           `json:"code,omitempty"`
	State    string           `json:"state"`
	Output   *StatementOutput `json:"output,omitempty"`
	Progress float64          `json:"progress,omitempty"`
}

// Finished reports whether the statement has reached a terminal state.
func (s *Statement) Finished() bool {
	switch s.State {
	case StatementAvailable, StatementError, StatementCancelled:
		return true
	}
	return false
}

// Output statuses.
const (
	OutputOK    = "ok"
	OutputError = "error"
)

// MIME keys in StatementOutput.Data.
const (
	MIMEPlainText = "text/plain"
	MIMEJSON      = "application/json"
)

// StatementOutput is the result of a finished statement.
type StatementOutput struct {
	Status         string                     `json:"status"`
	ExecutionCount int                        `json:"execution_count"`
	Data           map[string]json.RawMessage `json:"data,omitempty"`
	EName          string                     `json:"ename,omitempty"`
	EValue         string                     `json:"evalue,omitempty"`
	Traceback      []string                   `json:"traceback,omitempty"`
}

// Text returns the text/plain payload, or "" if absent.
func (o *StatementOutput) Text() string {
	raw, ok := o.Data[MIMEPlainText]
	if !ok {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return string(raw)
	}
	return text
}

// JSON returns the application/json payload verbatim, or nil if absent.
func (o *StatementOutput) JSON() json.RawMessage {
	return o.Data[MIMEJSON]
}
