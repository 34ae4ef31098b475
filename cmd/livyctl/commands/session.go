// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bureau-foundation/livyctl/cmd/livyctl/cli"
	"github.com/bureau-foundation/livyctl/lib/codec"
	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/session"
	"github.com/bureau-foundation/livyctl/lib/statefile"
)

type startParams struct {
	globalParams
	cli.JSONOutput
}

func startCommand() *cli.Command {
	var params startParams

	return &cli.Command{
		Name:    "start",
		Summary: "Start the session if it is not running",
		Description: `Create the logical session on the endpoint with the current language
and configuration. A session that is already started is left alone.
The session need not be idle when start returns; the next statement
waits for it.`,
		Usage:  "livyctl start [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fault.Usage("start takes no arguments")
			}
			return params.run(logger, openOptions{}, func(r *runtime) error {
				if err := r.kernel.StartSession(ctx); err != nil {
					return err
				}
				view, _ := r.view()
				if done, err := params.EmitJSON(view); done {
					return err
				}
				id, _ := view.ID()
				r.display.Write(fmt.Sprintf("Session %s (id %d, %s) is %s on %s.",
					view.Name, id, view.Kind, view.State, r.endpoint.URL()))
				return nil
			})
		},
	}
}

func stopCommand() *cli.Command {
	var params globalParams

	return &cli.Command{
		Name:    "stop",
		Summary: "Delete the session",
		Description: `Delete this kernel's session on the endpoint. Stopping a session that
is not running does nothing. The next command that needs a session
starts a fresh one.`,
		Usage:  "livyctl stop [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fault.Usage("stop takes no arguments")
			}
			return params.run(logger, openOptions{}, func(r *runtime) error {
				if !r.kernel.SessionStarted() {
					r.display.Write("No session is running.")
					return nil
				}
				if err := r.kernel.StopSession(ctx); err != nil {
					return err
				}
				r.display.Write(fmt.Sprintf("Stopped session %s.", r.kernel.SessionName()))
				return nil
			})
		},
	}
}

type infoParams struct {
	globalParams
	cli.JSONOutput
}

func infoCommand() *cli.Command {
	var params infoParams

	return &cli.Command{
		Name:    "info",
		Summary: "List every session on the endpoint",
		Description: `Show the endpoint, this kernel's session, and every session the job
server reports. The current session is marked with *.`,
		Usage:  "livyctl info [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return params.run(logger, openOptions{}, func(r *runtime) error {
				if params.OutputJSON {
					sessions, err := r.controller.GetAllSessionsEndpointInfo(ctx, r.endpoint)
					if err != nil {
						return err
					}
					_, err = params.EmitJSON(sessions)
					return err
				}
				return r.kernel.Info(ctx)
			})
		},
	}
}

func logsCommand() *cli.Command {
	var params globalParams

	return &cli.Command{
		Name:    "logs",
		Summary: "Show the tail of the session log",
		Usage:   "livyctl logs [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return params.run(logger, openOptions{}, func(r *runtime) error {
				r.kernel.Logs(ctx)
				return nil
			})
		},
	}
}

type statusParams struct {
	globalParams
	cli.JSONOutput
	Raw bool `flag:"raw" desc:"print the state file in CBOR diagnostic notation"`
}

// statusReport is the --json shape of status.
type statusReport struct {
	Name     string         `json:"name"`
	Endpoint string         `json:"endpoint"`
	Language string         `json:"language"`
	Started  bool           `json:"started"`
	Config   session.Config `json:"config"`
	Session  *session.View  `json:"session,omitempty"`
}

func statusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show the local state of the session",
		Description: `Show what livyctl remembers about this kernel's session: language,
configuration, and the record of the remote session. A tracked session
is refreshed from the job server first.`,
		Usage:  "livyctl status [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return params.run(logger, openOptions{}, func(r *runtime) error {
				if params.Raw {
					data, err := statefile.ReadRaw(r.statePath, r.stateKey)
					if errors.Is(err, os.ErrNotExist) {
						r.display.Write("No state recorded yet.")
						return nil
					}
					if err != nil {
						return err
					}
					diagnostic, err := codec.Diagnose(data)
					if err != nil {
						return err
					}
					r.display.Write(diagnostic)
					return nil
				}

				guard := r.kernel.Guard()
				report := statusReport{
					Name:     r.kernel.SessionName(),
					Endpoint: r.endpoint.URL(),
					Language: string(guard.Language()),
					Started:  r.kernel.SessionStarted(),
					Config:   guard.Config(),
				}
				if _, tracked := r.view(); tracked {
					if _, err := r.controller.Refresh(ctx, r.endpoint, report.Name); err != nil {
						r.logger.Warn("refreshing session state failed", "error", err)
					}
					view, _ := r.view()
					report.Session = &view
				}
				if done, err := params.EmitJSON(report); done {
					return err
				}
				r.display.Write(formatStatus(report))
				return nil
			})
		},
	}
}

func formatStatus(report statusReport) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Session:  %s\n", report.Name)
	fmt.Fprintf(&builder, "Endpoint: %s\n", report.Endpoint)
	fmt.Fprintf(&builder, "Language: %s\n", report.Language)
	if report.Session == nil {
		builder.WriteString("State:    not started\n")
		return builder.String()
	}
	state := string(report.Session.State)
	if id, ok := report.Session.ID(); ok {
		state = fmt.Sprintf("%s (id %d)", state, id)
	}
	fmt.Fprintf(&builder, "State:    %s\n", state)
	if report.Session.AppID != "" {
		fmt.Fprintf(&builder, "App ID:   %s\n", report.Session.AppID)
	}
	return builder.String()
}

type languageParams struct {
	globalParams
}

func languageCommand() *cli.Command {
	var params languageParams

	return &cli.Command{
		Name:    "language",
		Summary: "Set the language of the next session",
		Description: `Set the interpreter language for the session: python, scala, r or sql.
The language cannot change while a session is running; stop it first.
Without an argument the current language is printed.`,
		Usage:  "livyctl language [flags] [LANGUAGE]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fault.Usage("language takes one argument, got %d", len(args))
			}
			return params.run(logger, openOptions{}, func(r *runtime) error {
				if len(args) == 1 {
					if err := r.kernel.ChangeLanguage(args[0]); err != nil {
						return err
					}
				}
				r.display.Write(fmt.Sprintf("Language: %s", r.kernel.Guard().Language()))
				return nil
			})
		},
	}
}

type configureParams struct {
	globalParams
	Force bool   `flag:"force,f" desc:"restart a running session with the new configuration"`
	File  string `flag:"file" desc:"read settings from a file (- for stdin)"`
}

func configureCommand() *cli.Command {
	var params configureParams

	return &cli.Command{
		Name:    "configure",
		Summary: "Change the session configuration",
		Description: `Merge SETTINGS into the configuration used to create the session.
SETTINGS is a JSON object (comments and trailing commas allowed) with
Livy session fields such as driverMemory, executorCores, numExecutors,
conf, or jars. Unrecognized fields are passed to the server as given.

A running session keeps its configuration unless --force is given, in
which case it is stopped and started again with the merged settings.
Without SETTINGS the current configuration is printed.`,
		Usage: "livyctl configure [flags] [SETTINGS]",
		Examples: []cli.Example{
			{
				Description: "Set executor resources before the session starts",
				Command:     `livyctl configure '{"executorMemory": "8g", "numExecutors": 10}'`,
			},
			{
				Description: "Add a Spark conf and restart the running session",
				Command:     `livyctl configure -f '{"conf": {"spark.sql.shuffle.partitions": 64}}'`,
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fault.Usage("configure takes one SETTINGS argument; quote the JSON object")
			}
			if len(args) == 1 && params.File != "" {
				return fault.Usage("pass SETTINGS or --file, not both")
			}
			return params.run(logger, openOptions{}, func(r *runtime) error {
				text := ""
				switch {
				case len(args) == 1:
					text = args[0]
				case params.File != "":
					var err error
					if text, err = readSource(params.File); err != nil {
						return err
					}
				default:
					return cli.WriteJSON(cli.Stdout, r.kernel.Guard().SessionConfig())
				}
				overrides, err := session.ParseConfig([]byte(text))
				if err != nil {
					return err
				}
				return r.kernel.Configure(ctx, overrides, params.Force)
			})
		},
	}
}
