// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// Snapshot returns a view of every tracked record, sorted by endpoint
// identity and then name.
func (c *Controller) Snapshot() []session.View {
	c.mu.Lock()
	keys := make([]tableKey, 0, len(c.table))
	for key := range c.table {
		keys = append(keys, key)
	}
	sortKeys(keys)
	views := make([]session.View, 0, len(keys))
	for _, key := range keys {
		views = append(views, c.table[key].record.View())
	}
	c.mu.Unlock()
	return views
}

// Restore loads previously snapshotted records that belong to ep.
// Views for other endpoints, views without a remote id, dead sessions
// and names that are already tracked are skipped. It returns the
// number of records loaded.
func (c *Controller) Restore(ep *endpoint.Endpoint, views []session.View) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for _, view := range views {
		if view.EndpointIdentity != ep.Identity() || view.RemoteID == nil || view.State.Gone() {
			continue
		}
		key := tableKey{endpoint: ep.Identity(), name: view.Name}
		if _, exists := c.table[key]; exists {
			continue
		}
		c.table[key] = &entry{record: session.FromView(view), endpoint: ep}
		loaded++
	}
	if loaded > 0 {
		c.logger.Debug("restored session records", "endpoint", ep.URL(), "count", loaded)
	}
	return loaded
}
