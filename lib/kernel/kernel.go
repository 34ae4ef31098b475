// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel is the command layer over one logical session: it
// starts the session lazily, routes code and queries to it, and
// applies the safety rules for reconfiguring and deleting sessions.
//
// A Kernel is what a notebook magic or a CLI command talks to. It
// receives already-parsed arguments and reports through a Display.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/livyctl/lib/dispatch"
	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/guard"
	"github.com/bureau-foundation/livyctl/lib/livy"
	"github.com/bureau-foundation/livyctl/lib/result"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// NoLogsMessage is written by Logs when no session has been started.
const NoLogsMessage = "No logs yet."

// SessionController is the part of *controller.Controller a Kernel
// uses.
type SessionController interface {
	AddSession(ctx context.Context, name string, ep *endpoint.Endpoint, skipIfExists bool, config session.Config) (session.View, error)
	DeleteSessionByName(ctx context.Context, ep *endpoint.Endpoint, name string) error
	DeleteSessionByID(ctx context.Context, ep *endpoint.Endpoint, id int) error
	GetSessionIDForClient(ep *endpoint.Endpoint, name string) (int, bool)
	CleanupEndpoint(ctx context.Context, ep *endpoint.Endpoint) error
	GetAllSessionsEndpointInfo(ctx context.Context, ep *endpoint.Endpoint) ([]livy.Session, error)
	GetLogs(ctx context.Context, ep *endpoint.Endpoint, name string) result.Result[string]
	RunCell(ctx context.Context, ep *endpoint.Endpoint, name, code string) (result.Result[string], error)
	RunCellSQL(ctx context.Context, ep *endpoint.Endpoint, name, query string, sampling session.Sampling) (result.Result[string], error)
	RunCellHive(ctx context.Context, ep *endpoint.Endpoint, name, query string, sampling session.Sampling) (result.Result[string], error)
}

// TableExecutor runs table-returning queries. *dispatch.Dispatcher
// implements it.
type TableExecutor interface {
	ExecuteReturningTable(ctx context.Context, run dispatch.RunFunc, code string, sampling *session.Sampling, outputVar string) (result.Result[*dispatch.Table], error)
}

// Display receives user-facing output.
type Display interface {
	Write(text string)
	SendError(text string)
}

// Config configures a Kernel.
type Config struct {
	SessionName string
	Endpoint    *endpoint.Endpoint
	Controller  SessionController
	Executor    TableExecutor
	Display     Display

	Language      session.Language
	SessionConfig session.Config

	// Sampling overrides the executor's default for queries.
	Sampling *session.Sampling

	// Started marks a session restored from an earlier process as
	// already running.
	Started bool
}

// Kernel drives one logical session.
type Kernel struct {
	name       string
	endpoint   *endpoint.Endpoint
	controller SessionController
	executor   TableExecutor
	display    Display
	sampling   *session.Sampling
	guard      *guard.Guard

	mu      sync.Mutex
	started bool
}

// New creates a Kernel.
func New(config Config) *Kernel {
	k := &Kernel{
		name:       config.SessionName,
		endpoint:   config.Endpoint,
		controller: config.Controller,
		executor:   config.Executor,
		display:    config.Display,
		sampling:   config.Sampling,
		started:    config.Started,
	}
	k.guard = guard.New(k, config.Language, config.SessionConfig)
	return k
}

// SessionName returns the logical session name.
func (k *Kernel) SessionName() string { return k.name }

// Endpoint returns the endpoint sessions are created on.
func (k *Kernel) Endpoint() *endpoint.Endpoint { return k.endpoint }

// Guard returns the kernel's language and configuration guard.
func (k *Kernel) Guard() *guard.Guard { return k.guard }

// SessionStarted reports whether this kernel has a live session.
func (k *Kernel) SessionStarted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.started
}

func (k *Kernel) setStarted(started bool) {
	k.mu.Lock()
	k.started = started
	k.mu.Unlock()
}

// StartSession creates the session if this kernel has not started one.
// A started kernel makes no controller call.
func (k *Kernel) StartSession(ctx context.Context) error {
	if k.SessionStarted() {
		return nil
	}
	if _, err := k.controller.AddSession(ctx, k.name, k.endpoint, false, k.guard.SessionConfig()); err != nil {
		return fmt.Errorf("starting session %q: %w", k.name, err)
	}
	k.setStarted(true)
	return nil
}

// StopSession deletes the session if one is started. The kernel counts
// as stopped afterwards even when the remote delete failed.
func (k *Kernel) StopSession(ctx context.Context) error {
	if !k.SessionStarted() {
		return nil
	}
	err := k.controller.DeleteSessionByName(ctx, k.endpoint, k.name)
	k.setStarted(false)
	if err != nil {
		return fmt.Errorf("stopping session %q: %w", k.name, err)
	}
	return nil
}

// ChangeLanguage sets the language of the next session.
func (k *Kernel) ChangeLanguage(candidate string) error {
	return k.guard.ChangeLanguage(candidate)
}

// Info writes this kernel's session and every session on the endpoint.
func (k *Kernel) Info(ctx context.Context) error {
	sessions, err := k.controller.GetAllSessionsEndpointInfo(ctx, k.endpoint)
	if err != nil {
		return err
	}
	var current *int
	if k.SessionStarted() {
		if id, ok := k.controller.GetSessionIDForClient(k.endpoint, k.name); ok {
			current = &id
		}
	}
	k.display.Write(formatInfo(k.endpoint, k.name, current, sessions))
	return nil
}

// Logs writes the session log, or NoLogsMessage when no session has
// been started.
func (k *Kernel) Logs(ctx context.Context) {
	if !k.SessionStarted() {
		k.display.Write(NoLogsMessage)
		return
	}
	k.controller.GetLogs(ctx, k.endpoint, k.name).Match(k.display.Write, k.display.SendError)
}

// Configure merges overrides into the session configuration. A started
// session needs force, in which case it is restarted with the merged
// configuration.
func (k *Kernel) Configure(ctx context.Context, overrides session.Config, force bool) error {
	restart, err := k.guard.MergeConfiguration(ctx, overrides, force)
	if err != nil {
		return err
	}
	if restart {
		if err := k.StartSession(ctx); err != nil {
			return err
		}
	}
	k.display.Write(formatConfig(k.guard.SessionConfig()))
	return nil
}

// Spark runs cell in the session's interpreter, starting the session
// first if needed.
func (k *Kernel) Spark(ctx context.Context, cell string) error {
	if err := k.StartSession(ctx); err != nil {
		return err
	}
	outcome, err := k.controller.RunCell(ctx, k.endpoint, k.name, cell)
	if err != nil {
		return err
	}
	outcome.Match(k.display.Write, k.display.SendError)
	return nil
}

// SQL runs query through the session's SQL context and writes the
// resulting table. A non-empty outputVar also binds the table.
func (k *Kernel) SQL(ctx context.Context, query, outputVar string) error {
	return k.query(ctx, query, outputVar, func(ctx context.Context, code string, sampling session.Sampling) (result.Result[string], error) {
		return k.controller.RunCellSQL(ctx, k.endpoint, k.name, code, sampling)
	})
}

// Hive runs query through the session's Hive context.
func (k *Kernel) Hive(ctx context.Context, query, outputVar string) error {
	return k.query(ctx, query, outputVar, func(ctx context.Context, code string, sampling session.Sampling) (result.Result[string], error) {
		return k.controller.RunCellHive(ctx, k.endpoint, k.name, code, sampling)
	})
}

func (k *Kernel) query(ctx context.Context, query, outputVar string, run dispatch.RunFunc) error {
	if err := k.StartSession(ctx); err != nil {
		return err
	}
	outcome, err := k.executor.ExecuteReturningTable(ctx, run, query, k.sampling, outputVar)
	if err != nil {
		return err
	}
	outcome.Match(
		func(table *dispatch.Table) { k.display.Write(table.String()) },
		k.display.SendError,
	)
	return nil
}

// Cleanup deletes every session on the endpoint, this kernel's
// included. It requires force and checks that before any remote call.
func (k *Kernel) Cleanup(ctx context.Context, force bool) error {
	if !force {
		return fault.Usage("cleanup deletes every session on %s; use force to confirm", k.endpoint.URL())
	}
	cleanupErr := k.controller.CleanupEndpoint(ctx, k.endpoint)
	deleteErr := k.controller.DeleteSessionByName(ctx, k.endpoint, k.name)
	k.setStarted(false)
	return errors.Join(cleanupErr, deleteErr)
}

// Delete deletes session id on the endpoint. It requires force, and
// refuses the id of this kernel's own session: use StopSession for
// that.
func (k *Kernel) Delete(ctx context.Context, id int, force bool) error {
	if !force {
		return fault.Usage("deleting session %d needs force", id)
	}
	if own, ok := k.controller.GetSessionIDForClient(k.endpoint, k.name); ok && own == id {
		return fault.Usage("session %d is this kernel's own session; stop it instead of deleting it", id)
	}
	if err := k.controller.DeleteSessionByID(ctx, k.endpoint, id); err != nil {
		return err
	}
	k.display.Write(fmt.Sprintf("Deleted session %d.", id))
	return nil
}
