// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the livyctl command tree.
//
// Each invocation is one process, but the remote session outlives it.
// Commands therefore load the session's state file (lib/statefile),
// seed a controller with it, run through a kernel, and write the state
// back before exiting.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/livyctl/cmd/livyctl/cli"
	"github.com/bureau-foundation/livyctl/lib/version"
)

// Root builds and returns the complete livyctl command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "livyctl",
		Description: `livyctl: drive interactive Spark sessions on a Livy job server.

A logical session is created on first use and reused by later commands
until it is stopped. Code runs in the session's language (python, scala,
r or sql); SQL and Hive queries come back as tables.`,
		Subcommands: []*cli.Command{
			startCommand(),
			stopCommand(),
			runCommand(),
			sqlCommand(),
			hiveCommand(),
			logsCommand(),
			infoCommand(),
			statusCommand(),
			languageCommand(),
			configureCommand(),
			deleteCommand(),
			cleanupCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Fprintf(cli.Stdout, "livyctl %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Run a line of Python in the default session",
				Command:     "livyctl run -c 'spark.range(10).count()'",
			},
			{
				Description: "Query a table and save the rows as JSON",
				Command:     "livyctl sql -o rows 'SELECT * FROM events' > rows.json",
			},
			{
				Description: "Switch to Scala before the session starts",
				Command:     "livyctl language scala",
			},
			{
				Description: "Give the driver more memory, restarting the session",
				Command:     `livyctl configure -f '{"driverMemory": "4g"}'`,
			},
			{
				Description: "Use an ad-hoc endpoint instead of the config file",
				Command:     "livyctl info -e 'url=http://livy:8998'",
			},
		},
	}
}
