// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single point of CBOR configuration for livyctl.
//
// CBOR is used for the on-disk kernel state file (see lib/statefile):
// the tracked session records, pending language, and session settings
// that must survive between CLI invocations. The wire protocol to the
// job server is JSON and does not go through this package.
//
// Struct types use cbor tags where they are purely internal and json
// tags where they are shared with the HTTP layer; fxamacker/cbor falls
// back to json tags when no cbor tag is present.
package codec
