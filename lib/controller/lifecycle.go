// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/livy"
	"github.com/bureau-foundation/livyctl/lib/result"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// AddSession ensures a session named name exists on ep.
//
// A tracked record that is still alive is returned as-is with no remote
// call. A tracked record that is dead or deleted is replaced; its
// remote id is deleted first so the server releases the name. When
// skipIfExists is set, a live server-side session whose
// name matches is adopted instead of creating a new one. Otherwise the
// session is created with config and tracked in the starting state.
// On failure no record is left behind.
func (c *Controller) AddSession(ctx context.Context, name string, ep *endpoint.Endpoint, skipIfExists bool, config session.Config) (session.View, error) {
	key, err := keyOf(ep, name)
	if err != nil {
		return session.View{}, err
	}
	unlock, err := c.locks.acquire(ctx, key)
	if err != nil {
		return session.View{}, fmt.Errorf("adding session %q: %w", name, err)
	}
	defer unlock()

	if existing, ok := c.lookup(key); ok {
		if !existing.record.State().Gone() {
			return existing.record.View(), nil
		}
		c.logger.Info("replacing dead session", "session", name, "endpoint", ep.URL())
		c.remove(key)
		if id, assigned := existing.record.RemoteID(); assigned {
			if err := c.deleteRemote(ctx, existing.endpoint, id); err != nil {
				c.logger.Warn("deleting replaced session failed", "session", name, "remote_id", id, "error", err)
			}
		}
	}

	client, err := c.client(ep)
	if err != nil {
		return session.View{}, err
	}

	if skipIfExists {
		adopted, err := c.adopt(ctx, client, name, ep, config)
		if err != nil {
			return session.View{}, err
		}
		if adopted != nil {
			c.store(key, &entry{record: adopted, endpoint: ep})
			return adopted.View(), nil
		}
	}

	body, err := config.Body()
	if err != nil {
		return session.View{}, fmt.Errorf("adding session %q: %w", name, err)
	}
	if config.Name == "" {
		body["name"] = name
	}
	created, err := client.CreateSession(ctx, body)
	if err != nil {
		return session.View{}, fmt.Errorf("adding session %q: %w", name, err)
	}

	record := session.NewRecord(name, ep.URL(), ep.Identity(), config)
	if err := record.AssignRemoteID(created.ID); err != nil {
		return session.View{}, err
	}
	if err := record.Transition(session.StateStarting); err != nil {
		return session.View{}, err
	}
	c.observe(record, created.State)
	record.Describe(created.Name, created.AppID, created.Owner, session.Kind(created.Kind))
	record.MarkCreated(c.clock.Now())
	c.store(key, &entry{record: record, endpoint: ep})

	c.logger.Info("session created",
		"session", name,
		"endpoint", ep.URL(),
		"remote_id", created.ID,
		"kind", created.Kind,
	)
	return record.View(), nil
}

// adopt looks for a live server-side session named name. It returns
// nil when there is none.
func (c *Controller) adopt(ctx context.Context, client Client, name string, ep *endpoint.Endpoint, config session.Config) (*session.Record, error) {
	remotes, err := client.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("adding session %q: %w", name, err)
	}
	for _, remote := range remotes {
		if remote.Name != name || session.FromRemote(remote.State).Gone() {
			continue
		}
		record := session.NewRecord(name, ep.URL(), ep.Identity(), config)
		if err := record.AssignRemoteID(remote.ID); err != nil {
			return nil, err
		}
		if err := record.Transition(session.StateStarting); err != nil {
			return nil, err
		}
		c.observe(record, remote.State)
		record.Describe(remote.Name, remote.AppID, remote.Owner, session.Kind(remote.Kind))
		c.logger.Info("adopted existing session", "session", name, "endpoint", ep.URL(), "remote_id", remote.ID)
		return record, nil
	}
	return nil, nil
}

// DeleteSessionByName ends the session tracked under name on ep. An
// untracked name is a no-op. The local record is dropped whatever the
// server answers; a remote failure other than "already gone" is logged
// and returned.
func (c *Controller) DeleteSessionByName(ctx context.Context, ep *endpoint.Endpoint, name string) error {
	key, err := keyOf(ep, name)
	if err != nil {
		return err
	}
	unlock, err := c.locks.acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("deleting session %q: %w", name, err)
	}
	defer unlock()

	found, ok := c.lookup(key)
	if !ok {
		return nil
	}
	c.remove(key)
	_ = found.record.Transition(session.StateDeleted)

	id, assigned := found.record.RemoteID()
	if !assigned {
		return nil
	}
	if err := c.deleteRemote(ctx, found.endpoint, id); err != nil {
		c.logger.Error("deleting remote session failed", "session", name, "remote_id", id, "error", err)
		return fmt.Errorf("deleting session %q: %w", name, err)
	}
	c.logger.Info("session deleted", "session", name, "remote_id", id)
	return nil
}

// deleteRemote deletes one server-side session. A 404 counts as done.
func (c *Controller) deleteRemote(ctx context.Context, ep *endpoint.Endpoint, id int) error {
	client, err := c.client(ep)
	if err != nil {
		return err
	}
	if err := client.DeleteSession(ctx, id); err != nil && !livy.IsNotFound(err) {
		return err
	}
	return nil
}

// DeleteSessionByID deletes server-side session id on ep, whether or
// not this controller tracks it, and drops any record that held that
// id. A session the server does not know is a usage fault.
func (c *Controller) DeleteSessionByID(ctx context.Context, ep *endpoint.Endpoint, id int) error {
	client, err := c.client(ep)
	if err != nil {
		return err
	}
	remoteErr := client.DeleteSession(ctx, id)
	c.dropWhere(ctx, ep.Identity(), func(record *session.Record) bool {
		held, ok := record.RemoteID()
		return ok && held == id
	})
	if remoteErr != nil {
		if livy.IsNotFound(remoteErr) {
			return fault.Usage("no session %d on %s", id, ep.URL())
		}
		return fmt.Errorf("deleting session %d: %w", id, remoteErr)
	}
	c.logger.Info("session deleted", "remote_id", id, "endpoint", ep.URL())
	return nil
}

// dropWhere removes matching records on one endpoint under their key
// locks. A record whose lock cannot be taken before ctx ends is left
// in place.
func (c *Controller) dropWhere(ctx context.Context, identity string, match func(*session.Record) bool) {
	for _, key := range c.keysWhere(identity, match) {
		unlock, err := c.locks.acquire(ctx, key)
		if err != nil {
			c.logger.Warn("could not drop local session record", "session", key.name, "error", err)
			continue
		}
		if found, ok := c.lookup(key); ok && match(found.record) {
			c.remove(key)
			_ = found.record.Transition(session.StateDeleted)
		}
		unlock()
	}
}

// GetSessionIDForClient returns the remote id tracked under name on
// ep. It reports false when the name is untracked there or has no id
// yet.
func (c *Controller) GetSessionIDForClient(ep *endpoint.Endpoint, name string) (int, bool) {
	key, err := keyOf(ep, name)
	if err != nil {
		return 0, false
	}
	found, ok := c.lookup(key)
	if !ok {
		return 0, false
	}
	return found.record.RemoteID()
}

// CleanupEndpoint deletes every server-side session on ep and drops
// every local record for it. Deletion continues past individual
// failures; the failures are joined into the returned error.
func (c *Controller) CleanupEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	client, err := c.client(ep)
	if err != nil {
		return err
	}
	remotes, err := client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("cleaning up %s: %w", ep.URL(), err)
	}

	var failures []error
	for _, remote := range remotes {
		if err := client.DeleteSession(ctx, remote.ID); err != nil && !livy.IsNotFound(err) {
			c.logger.Error("deleting remote session failed", "remote_id", remote.ID, "error", err)
			failures = append(failures, err)
			continue
		}
		c.logger.Info("session deleted", "remote_id", remote.ID, "endpoint", ep.URL())
	}
	c.dropWhere(ctx, ep.Identity(), func(*session.Record) bool { return true })

	if len(failures) > 0 {
		return fmt.Errorf("cleaning up %s: %w", ep.URL(), errors.Join(failures...))
	}
	return nil
}

// GetAllSessionsEndpointInfo lists every server-side session on ep.
func (c *Controller) GetAllSessionsEndpointInfo(ctx context.Context, ep *endpoint.Endpoint) ([]livy.Session, error) {
	client, err := c.client(ep)
	if err != nil {
		return nil, err
	}
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions on %s: %w", ep.URL(), err)
	}
	return sessions, nil
}

// GetLogs returns the tail of the server log for the session tracked
// under name on ep. Every problem, including an untracked name, is a
// failure result.
func (c *Controller) GetLogs(ctx context.Context, ep *endpoint.Endpoint, name string) result.Result[string] {
	key, err := keyOf(ep, name)
	if err != nil {
		return result.Failure[string](err.Error())
	}
	found, ok := c.lookup(key)
	if !ok {
		return result.Failuref[string]("no session named %q", name)
	}
	id, assigned := found.record.RemoteID()
	if !assigned {
		return result.Failuref[string]("session %q has no remote id yet", name)
	}
	client, err := c.client(found.endpoint)
	if err != nil {
		return result.Failure[string](err.Error())
	}
	log, err := client.GetSessionLog(ctx, id, -1, c.logSize)
	if err != nil {
		return result.Failure[string](err.Error())
	}
	return result.Success(strings.Join(log.Log, "\n"))
}

// Refresh polls the server once for the session tracked under name on
// ep and returns the updated view.
func (c *Controller) Refresh(ctx context.Context, ep *endpoint.Endpoint, name string) (session.View, error) {
	key, err := keyOf(ep, name)
	if err != nil {
		return session.View{}, err
	}
	unlock, err := c.locks.acquire(ctx, key)
	if err != nil {
		return session.View{}, err
	}
	defer unlock()

	found, ok := c.lookup(key)
	if !ok {
		return session.View{}, fault.Usage("no session named %q", name)
	}
	if err := c.refresh(ctx, found); err != nil {
		return found.record.View(), err
	}
	return found.record.View(), nil
}

// refresh updates found from the server. A session the server no
// longer knows is marked dead. Caller holds the key lock.
func (c *Controller) refresh(ctx context.Context, found *entry) error {
	id, assigned := found.record.RemoteID()
	if !assigned {
		return nil
	}
	client, err := c.client(found.endpoint)
	if err != nil {
		return err
	}
	remote, err := client.GetSession(ctx, id)
	if err != nil {
		if livy.IsNotFound(err) {
			_ = found.record.Transition(session.StateDead)
			return nil
		}
		return fmt.Errorf("refreshing session %q: %w", found.record.Name(), err)
	}
	c.observe(found.record, remote.State)
	found.record.Describe(remote.Name, remote.AppID, remote.Owner, session.Kind(remote.Kind))
	return nil
}
