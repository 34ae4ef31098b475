// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile persists a kernel's session state between livyctl
// invocations.
//
// Each livyctl command is a separate process, but the session it talks
// to outlives it. The state file carries what the next invocation needs
// to pick up where the last one left off: the logical session name, the
// chosen language and configuration, whether the session was started,
// and a snapshot of the controller's records for that endpoint.
//
// One file exists per (endpoint, session name) pair. Files are CBOR
// (see lib/codec) sealed with XChaCha20-Poly1305 under a per-file key
// that HKDF derives from the master key in state.key, since session
// configuration can carry credentials. Writes are atomic (temporary
// file, fsync, rename), so a reader never sees a partial state. A
// missing file is not an error: Load returns an empty State.
package statefile
