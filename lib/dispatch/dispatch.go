// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch runs a query through a caller-supplied function and
// turns its text payload into a Table, optionally binding the table
// into the caller's variable namespace.
package dispatch

import (
	"context"

	"github.com/bureau-foundation/livyctl/lib/result"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// RunFunc executes code with the given sampling. It is usually a
// controller method bound to a session name.
type RunFunc func(ctx context.Context, code string, sampling session.Sampling) (result.Result[string], error)

// Namespace receives named outputs.
type Namespace interface {
	Bind(name string, value any)
}

// Dispatcher executes table-returning queries.
type Dispatcher struct {
	namespace Namespace
	sampling  session.Sampling
}

// New creates a Dispatcher. A nil namespace discards bindings; the
// default sampling applies when a call passes none.
func New(namespace Namespace, defaults session.Sampling) *Dispatcher {
	return &Dispatcher{namespace: namespace, sampling: defaults}
}

// ExecuteReturningTable calls run once and converts a successful
// payload into a Table. When outputVar is non-empty the table is bound
// under that name exactly once; when empty nothing is bound. Failure
// results and errors from run pass through unchanged. A payload that
// is not tabular is a failure result.
func (d *Dispatcher) ExecuteReturningTable(ctx context.Context, run RunFunc, code string, sampling *session.Sampling, outputVar string) (result.Result[*Table], error) {
	effective := d.sampling
	if sampling != nil {
		effective = *sampling
	}
	outcome, err := run(ctx, code, effective)
	if err != nil {
		return result.Result[*Table]{}, err
	}
	payload, ok := outcome.Value()
	if !ok {
		return result.Failure[*Table](outcome.Message()), nil
	}
	table, err := ParseTable(payload)
	if err != nil {
		return result.Failuref[*Table]("query output is not a table: %v", err), nil
	}
	if outputVar != "" && d.namespace != nil {
		d.namespace.Bind(outputVar, table)
	}
	return result.Success(table), nil
}
