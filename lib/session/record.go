// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"time"
)

// Record is the controller's bookkeeping for one logical session on one
// endpoint. A Record is owned by exactly one controller and is mutated
// only while that controller holds the record's key lock. Everything
// outside the controller sees View copies.
type Record struct {
	name             string
	endpointURL      string
	endpointIdentity string
	remoteID         *int
	serverName       string
	kind             Kind
	state            State
	config           Config
	appID            string
	owner            string
	createdAt        time.Time
}

// NewRecord returns a record in the not_created state.
func NewRecord(name, endpointURL, endpointIdentity string, config Config) *Record {
	return &Record{
		name:             name,
		endpointURL:      endpointURL,
		endpointIdentity: endpointIdentity,
		kind:             config.Kind,
		state:            StateNotCreated,
		config:           config.Clone(),
	}
}

// FromView rebuilds a record from a persisted view.
func FromView(view View) *Record {
	record := &Record{
		name:             view.Name,
		endpointURL:      view.EndpointURL,
		endpointIdentity: view.EndpointIdentity,
		serverName:       view.ServerName,
		kind:             view.Kind,
		state:            view.State,
		config:           view.Config.Clone(),
		appID:            view.AppID,
		owner:            view.Owner,
		createdAt:        view.CreatedAt,
	}
	if view.RemoteID != nil {
		id := *view.RemoteID
		record.remoteID = &id
	}
	if record.state == "" {
		record.state = StateNotCreated
	}
	return record
}

// Name returns the logical session name.
func (r *Record) Name() string { return r.name }

// EndpointIdentity returns the identity of the endpoint the session lives on.
func (r *Record) EndpointIdentity() string { return r.endpointIdentity }

// State returns the lifecycle state.
func (r *Record) State() State { return r.state }

// RemoteID returns the server-assigned id, if one has been assigned.
func (r *Record) RemoteID() (int, bool) {
	if r.remoteID == nil {
		return 0, false
	}
	return *r.remoteID, true
}

// AssignRemoteID records the server-assigned id. An id never changes
// once assigned; reassigning the same id is a no-op.
func (r *Record) AssignRemoteID(id int) error {
	if r.remoteID != nil {
		if *r.remoteID == id {
			return nil
		}
		return fmt.Errorf("session %q already has remote id %d, refusing to reassign to %d", r.name, *r.remoteID, id)
	}
	r.remoteID = &id
	return nil
}

// Transition moves the record to state. Illegal steps return a
// *TransitionError and leave the record unchanged.
func (r *Record) Transition(state State) error {
	if !CanTransition(r.state, state) {
		return &TransitionError{Session: r.name, From: r.state, To: state}
	}
	r.state = state
	return nil
}

// Describe stores server-reported metadata. Empty values do not
// overwrite known ones.
func (r *Record) Describe(serverName, appID, owner string, kind Kind) {
	if serverName != "" {
		r.serverName = serverName
	}
	if appID != "" {
		r.appID = appID
	}
	if owner != "" {
		r.owner = owner
	}
	if kind.Valid() {
		r.kind = kind
	}
}

// MarkCreated stamps the creation time.
func (r *Record) MarkCreated(at time.Time) { r.createdAt = at }

// View returns an independent snapshot of the record.
func (r *Record) View() View {
	view := View{
		Name:             r.name,
		ServerName:       r.serverName,
		EndpointURL:      r.endpointURL,
		EndpointIdentity: r.endpointIdentity,
		Kind:             r.kind,
		State:            r.state,
		Config:           r.config.Clone(),
		AppID:            r.appID,
		Owner:            r.owner,
		CreatedAt:        r.createdAt,
	}
	if r.remoteID != nil {
		id := *r.remoteID
		view.RemoteID = &id
	}
	return view
}

// View is a read-only copy of a Record. Fields carry CBOR and JSON tags
// so a table snapshot can be persisted and printed.
type View struct {
	Name             string    `json:"name"`
	ServerName       string    `json:"server_name,omitempty"`
	EndpointURL      string    `json:"endpoint_url"`
	EndpointIdentity string    `json:"endpoint_identity"`
	RemoteID         *int      `json:"remote_id,omitempty"`
	Kind             Kind      `json:"kind,omitempty"`
	State            State     `json:"state"`
	Config           Config    `json:"config"`
	AppID            string    `json:"app_id,omitempty"`
	Owner            string    `json:"owner,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
}

// Started reports whether the session counts as started.
func (v View) Started() bool { return v.State.Started() }

// ID returns the remote id, if assigned.
func (v View) ID() (int, bool) {
	if v.RemoteID == nil {
		return 0, false
	}
	return *v.RemoteID, true
}
