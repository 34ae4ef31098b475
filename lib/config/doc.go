// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for livyctl.
//
// Configuration is loaded from a single file named by either the
// LIVYCTL_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file search. A command run without
// either uses [Default] and needs an explicit connection string.
//
// Variable expansion is performed on path and URL fields after
// loading: ${HOME}, ${LIVYCTL_STATE}, and ${VAR:-default} patterns are
// expanded.
//
// Key exports:
//
//   - [Config] -- endpoints, defaults, polling, retry, sampling, state
//   - [Default] -- a Config with built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Endpoint] -- builds an endpoint, reading its password file
package config
