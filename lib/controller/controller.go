// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller tracks remote interactive sessions by logical name
// and drives their lifecycle on the job server.
//
// A Controller owns a session table keyed by (endpoint identity,
// logical name). Lifecycle operations on the same key are serialized;
// operations on different keys run concurrently. Callers receive
// session.View copies and never touch a live record.
//
// Create and delete are idempotent: adding a session that is already
// tracked returns the existing record without a remote call, and
// deleting an untracked name is a no-op. Remote execution failures are
// returned as result.Failure values. Only transport faults and context
// cancellation surface as errors.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/livyctl/lib/clock"
	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/livy"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// Client is the part of the job server API the controller uses.
// *livy.Client implements it.
type Client interface {
	CreateSession(ctx context.Context, body map[string]any) (*livy.Session, error)
	ListSessions(ctx context.Context) ([]livy.Session, error)
	GetSession(ctx context.Context, id int) (*livy.Session, error)
	DeleteSession(ctx context.Context, id int) error
	GetSessionLog(ctx context.Context, id, from, size int) (*livy.SessionLog, error)
	SubmitStatement(ctx context.Context, id int, request livy.StatementRequest) (*livy.Statement, error)
	GetStatement(ctx context.Context, id, statementID int) (*livy.Statement, error)
	CancelStatement(ctx context.Context, id, statementID int) error
}

// ClientFactory builds a Client for an endpoint. The controller calls
// it at most once per endpoint identity.
type ClientFactory func(*endpoint.Endpoint) (Client, error)

// PollingConfig bounds the waits on the job server.
type PollingConfig struct {
	// StartTimeout bounds the wait for a session to become idle before
	// a statement is submitted. Default 60s.
	StartTimeout time.Duration

	// StatementTimeout bounds the wait for one statement to finish.
	// Zero waits until the statement finishes or the context ends.
	StatementTimeout time.Duration

	// InitialInterval is the first poll interval. Each later interval
	// doubles, capped at MaxInterval. Defaults 250ms and 5s.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolling returns the default polling bounds.
func DefaultPolling() PollingConfig {
	return PollingConfig{
		StartTimeout:    60 * time.Second,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// DefaultLogSize is the number of log lines GetLogs fetches.
const DefaultLogSize = 100

// Config configures a Controller.
type Config struct {
	Clock  clock.Clock
	Logger *slog.Logger

	// Clients defaults to building a *livy.Client per endpoint with
	// Retry, Clock and Logger.
	Clients ClientFactory
	Retry   livy.RetryPolicy

	Polling PollingConfig
	LogSize int
}

// Controller manages the session table. Create one with New.
type Controller struct {
	clock   clock.Clock
	logger  *slog.Logger
	factory ClientFactory
	polling PollingConfig
	logSize int

	locks *keyedLocks

	// mu guards table and clients. It is never held across a remote
	// call.
	mu      sync.Mutex
	table   map[tableKey]*entry
	clients map[string]Client
}

type entry struct {
	record   *session.Record
	endpoint *endpoint.Endpoint
}

// New creates a Controller with an empty table.
func New(config Config) *Controller {
	c := &Controller{
		clock:   config.Clock,
		logger:  config.Logger,
		factory: config.Clients,
		polling: config.Polling,
		logSize: config.LogSize,
		locks:   newKeyedLocks(),
		table:   make(map[tableKey]*entry),
		clients: make(map[string]Client),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	defaults := DefaultPolling()
	if c.polling.StartTimeout <= 0 {
		c.polling.StartTimeout = defaults.StartTimeout
	}
	if c.polling.InitialInterval <= 0 {
		c.polling.InitialInterval = defaults.InitialInterval
	}
	if c.polling.MaxInterval <= 0 {
		c.polling.MaxInterval = defaults.MaxInterval
	}
	if c.logSize <= 0 {
		c.logSize = DefaultLogSize
	}
	if c.factory == nil {
		retry := config.Retry
		clk := c.clock
		logger := c.logger
		c.factory = func(ep *endpoint.Endpoint) (Client, error) {
			return livy.NewClient(livy.ClientConfig{
				Endpoint: ep,
				Logger:   logger,
				Clock:    clk,
				Retry:    retry,
			})
		}
	}
	return c
}

// client returns the cached Client for ep, building it on first use.
func (c *Controller) client(ep *endpoint.Endpoint) (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[ep.Identity()]; ok {
		return client, nil
	}
	client, err := c.factory(ep)
	if err != nil {
		return nil, fmt.Errorf("building client for %s: %w", ep, err)
	}
	c.clients[ep.Identity()] = client
	return client, nil
}

func (c *Controller) lookup(key tableKey) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	found, ok := c.table[key]
	return found, ok
}

func (c *Controller) store(key tableKey, found *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table[key] = found
}

func (c *Controller) remove(key tableKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.table, key)
}

// keyOf returns the table key of name on ep.
func keyOf(ep *endpoint.Endpoint, name string) (tableKey, error) {
	if name == "" {
		return tableKey{}, fault.Usage("session name is required")
	}
	if ep == nil {
		return tableKey{}, fault.Usage("session %q: endpoint is required", name)
	}
	return tableKey{endpoint: ep.Identity(), name: name}, nil
}

// keysWhere returns the keys on one endpoint whose record matches.
func (c *Controller) keysWhere(identity string, match func(*session.Record) bool) []tableKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []tableKey
	for key, found := range c.table {
		if key.endpoint == identity && match(found.record) {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []tableKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].endpoint != keys[j].endpoint {
			return keys[i].endpoint < keys[j].endpoint
		}
		return keys[i].name < keys[j].name
	})
}

// observe applies a server-reported state to a record. Steps the
// lifecycle does not allow are logged and ignored.
func (c *Controller) observe(record *session.Record, remote string) {
	target := session.FromRemote(remote)
	if target == record.State() {
		return
	}
	if err := record.Transition(target); err != nil {
		c.logger.Warn("ignoring server state", "session", record.Name(), "remote_state", remote, "error", err)
	}
}

// poller yields the waits between polls: InitialInterval doubling up
// to MaxInterval.
type poller struct {
	next time.Duration
	max  time.Duration
}

func (c *Controller) newPoller() *poller {
	return &poller{next: c.polling.InitialInterval, max: c.polling.MaxInterval}
}

// wait blocks for the next interval or until ctx is done.
func (p *poller) wait(ctx context.Context, clk clock.Clock) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(p.next):
	}
	p.next *= 2
	if p.next > p.max {
		p.next = p.max
	}
	return nil
}
