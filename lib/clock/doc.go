// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the poll and
// retry loops that talk to the job server.
//
// The controller waits in three places: for a new session to leave the
// starting state, for a submitted statement to finish, and between
// retries of a failed HTTP call. All three wait through a Clock. In
// production Real() delegates to the time package. In tests Fake()
// holds time still until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	ctrl := controller.New(controller.Config{Clock: c, ...})
//	go ctrl.RunCell(ctx, ep, "main", "1 + 1")
//	c.WaitForTimers(1)     // the poll loop is now waiting
//	c.Advance(time.Second) // release it
package clock
