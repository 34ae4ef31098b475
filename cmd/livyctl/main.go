// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command livyctl drives interactive Spark sessions on a Livy job
// server from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/livyctl/cmd/livyctl/cli"
	"github.com/bureau-foundation/livyctl/cmd/livyctl/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	// An interrupt cancels the running statement on the server before
	// livyctl exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cli.NewCommandLogger(commands.LogLevel)
	err := commands.Root().Execute(ctx, os.Args[1:], logger)
	code, report := cli.ExitCode(err)
	if report {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return code
}
