// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for livyctl.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a params struct whose tagged fields
// become flags (see [BindFlags]), and a Run function. Commands are
// assembled into a tree in cmd/livyctl/commands and dispatched via
// [Command.Execute], which handles flag parsing, subcommand routing,
// and help output with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// [ExitCode] maps a command's error onto the process exit status:
// usage faults exit 2, [ExitError] carries its own code, anything else
// exits 1.
package cli
