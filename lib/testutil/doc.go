// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for livyctl packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) for tests that drive
// a goroutine through a fake clock. They are the only place in the test
// suite where real wall-clock timeouts are used: a fake clock freezes
// time, so a bug that leaves a poll loop waiting would otherwise hang
// the test binary instead of failing one test.
//
// All helpers call t.Fatalf on failure rather than returning errors.
//
// This package has no livyctl-internal dependencies.
package testutil
