// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/livyctl/cmd/livyctl/cli"
	"github.com/bureau-foundation/livyctl/lib/config"
	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/session"
)

type runParams struct {
	globalParams
	Code string `flag:"code,c" desc:"code to run instead of reading FILE"`
}

func runCommand() *cli.Command {
	var params runParams

	return &cli.Command{
		Name:    "run",
		Summary: "Run code in the session",
		Description: `Run code in the session's interpreter and print its output. The code
is given with -c, read from FILE, or read from stdin when neither is
given (or FILE is -). The session is started first if needed.

An error raised by the code is printed to stderr and livyctl exits 1.`,
		Usage: "livyctl run [flags] [FILE]",
		Examples: []cli.Example{
			{
				Description: "Count rows in Python",
				Command:     "livyctl run -c 'spark.range(1000).count()'",
			},
			{
				Description: "Run a Scala script",
				Command:     "livyctl run -n etl job.scala",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fault.Usage("run takes at most one FILE, got %d", len(args))
			}
			if params.Code != "" && len(args) == 1 {
				return fault.Usage("pass -c or FILE, not both")
			}
			code := params.Code
			if code == "" {
				path := ""
				if len(args) == 1 {
					path = args[0]
				}
				var err error
				if code, err = readSource(path); err != nil {
					return err
				}
			}
			if strings.TrimSpace(code) == "" {
				return fault.Usage("no code to run")
			}
			return params.run(logger, openOptions{}, func(r *runtime) error {
				return r.kernel.Spark(ctx, code)
			})
		},
	}
}

// queryParams are shared by sql and hive.
type queryParams struct {
	globalParams
	Output   string  `flag:"output,o" desc:"bind the result to NAME and print it to stdout as JSON"`
	File     string  `flag:"file" desc:"read the query from a file (- for stdin)"`
	Method   string  `flag:"sample-method" desc:"take or sample (default from config)"`
	MaxRows  int     `flag:"max-rows,m" desc:"rows to return, -1 for all (default from config)"`
	Fraction float64 `flag:"fraction" desc:"fraction of rows to sample with --sample-method=sample"`
}

// sampling returns the per-query override, or nil when no sampling
// flag was given.
func (p *queryParams) sampling(cfg *config.Config) (*session.Sampling, error) {
	if p.Method == "" && p.MaxRows == 0 && p.Fraction == 0 {
		return nil, nil
	}
	sampling := cfg.Sampling
	if p.Method != "" {
		sampling.Method = session.SamplingMethod(strings.ToLower(p.Method))
	}
	if p.MaxRows != 0 {
		sampling.MaxRows = p.MaxRows
	}
	if p.Fraction != 0 {
		sampling.Fraction = p.Fraction
	}
	if err := sampling.Validate(); err != nil {
		return nil, err
	}
	return &sampling, nil
}

func (p *queryParams) query(args []string) (string, error) {
	if len(args) > 0 && p.File != "" {
		return "", fault.Usage("pass QUERY or --file, not both")
	}
	query := strings.Join(args, " ")
	if len(args) == 0 {
		var err error
		if query, err = readSource(p.File); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(query) == "" {
		return "", fault.Usage("no query given")
	}
	return query, nil
}

// execute runs a query through the kernel method selected by hive.
func (p *queryParams) execute(ctx context.Context, args []string, logger *slog.Logger, hive bool) error {
	query, err := p.query(args)
	if err != nil {
		return err
	}
	cfg, err := p.loadConfig()
	if err != nil {
		return err
	}
	sampling, err := p.sampling(cfg)
	if err != nil {
		return err
	}
	options := openOptions{sampling: sampling, tablesToStderr: p.Output != ""}
	return p.run(logger, options, func(r *runtime) error {
		var err error
		if hive {
			err = r.kernel.Hive(ctx, query, p.Output)
		} else {
			err = r.kernel.SQL(ctx, query, p.Output)
		}
		if err != nil {
			return err
		}
		if p.Output == "" || len(r.bindings.values) == 0 {
			return nil
		}
		return cli.WriteJSON(cli.Stdout, r.bindings.values)
	})
}

func sqlCommand() *cli.Command {
	var params queryParams

	return &cli.Command{
		Name:    "sql",
		Summary: "Run a SQL query and print the result table",
		Description: `Run QUERY through the session's SQL context and print the rows as a
table. Rows are limited by the sampling settings: by default the first
2500. With -o NAME the table is also written to stdout as JSON under
NAME and the text table goes to stderr.`,
		Usage: "livyctl sql [flags] QUERY",
		Examples: []cli.Example{
			{
				Description: "Show ten rows",
				Command:     "livyctl sql -m 10 'SELECT * FROM events'",
			},
			{
				Description: "Sample 1% of a large table into a JSON file",
				Command:     "livyctl sql --sample-method sample --fraction 0.01 -m -1 -o events 'SELECT * FROM events' > events.json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return params.execute(ctx, args, logger, false)
		},
	}
}

func hiveCommand() *cli.Command {
	var params queryParams

	return &cli.Command{
		Name:    "hive",
		Summary: "Run a HiveQL query and print the result table",
		Description: `Like sql, but the query runs through the session's Hive context so
Hive tables and UDFs are available.`,
		Usage:  "livyctl hive [flags] QUERY",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return params.execute(ctx, args, logger, true)
		},
	}
}
