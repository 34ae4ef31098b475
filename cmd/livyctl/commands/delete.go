// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/livyctl/cmd/livyctl/cli"
	"github.com/bureau-foundation/livyctl/lib/fault"
)

type deleteParams struct {
	globalParams
	ID    int  `flag:"id,s" desc:"remote id of the session to delete" default:"-1"`
	Force bool `flag:"force,f" desc:"confirm the deletion"`
}

func deleteCommand() *cli.Command {
	var params deleteParams

	return &cli.Command{
		Name:    "delete",
		Summary: "Delete another session on the endpoint by id",
		Description: `Delete the session with remote id -s on the endpoint. The deletion needs
-f. This kernel's own session cannot be deleted this way; use stop.
Run "livyctl info" to see the ids.`,
		Usage: "livyctl delete -s ID -f [flags]",
		Examples: []cli.Example{
			{
				Description: "Delete session 12",
				Command:     "livyctl delete -s 12 -f",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fault.Usage("delete takes no arguments; pass the id with -s")
			}
			if params.ID < 0 {
				return fault.Usage("-s ID is required")
			}
			return params.run(logger, openOptions{}, func(r *runtime) error {
				return r.kernel.Delete(ctx, params.ID, params.Force)
			})
		},
	}
}

type cleanupParams struct {
	globalParams
	Force bool `flag:"force,f" desc:"confirm deleting every session"`
}

func cleanupCommand() *cli.Command {
	var params cleanupParams

	return &cli.Command{
		Name:    "cleanup",
		Summary: "Delete every session on the endpoint",
		Description: `Delete every session on the endpoint, including sessions started by
other users and this kernel's own. Needs -f.`,
		Usage:  "livyctl cleanup -f [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fault.Usage("cleanup takes no arguments")
			}
			return params.run(logger, openOptions{}, func(r *runtime) error {
				if err := r.kernel.Cleanup(ctx, params.Force); err != nil {
					return err
				}
				r.display.Write("Deleted every session on " + r.endpoint.URL() + ".")
				return nil
			})
		},
	}
}
