// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/livyctl/lib/result"
	"github.com/bureau-foundation/livyctl/lib/session"
)

type recordingNamespace struct {
	binds map[string][]any
}

func (n *recordingNamespace) Bind(name string, value any) {
	if n.binds == nil {
		n.binds = make(map[string][]any)
	}
	n.binds[name] = append(n.binds[name], value)
}

type recordedRun struct {
	code     string
	sampling session.Sampling
}

func runReturning(outcome result.Result[string], err error, calls *[]recordedRun) RunFunc {
	return func(ctx context.Context, code string, sampling session.Sampling) (result.Result[string], error) {
		*calls = append(*calls, recordedRun{code: code, sampling: sampling})
		return outcome, err
	}
}

func TestExecuteReturningTable(t *testing.T) {
	ctx := context.Background()
	rows := result.Success("{\"a\":1}\n{\"a\":2}")

	t.Run("binds under the output name once", func(t *testing.T) {
		namespace := &recordingNamespace{}
		dispatcher := New(namespace, session.DefaultSampling())
		var calls []recordedRun

		outcome, err := dispatcher.ExecuteReturningTable(ctx, runReturning(rows, nil, &calls), "SELECT a", nil, "my_var")
		if err != nil {
			t.Fatalf("ExecuteReturningTable: %v", err)
		}
		table, ok := outcome.Value()
		if !ok || len(table.Rows) != 2 {
			t.Fatalf("outcome = %v", outcome)
		}
		if len(calls) != 1 || calls[0].code != "SELECT a" {
			t.Errorf("run calls = %+v", calls)
		}
		if calls[0].sampling != session.DefaultSampling() {
			t.Errorf("sampling = %+v, want defaults", calls[0].sampling)
		}
		if len(namespace.binds) != 1 || len(namespace.binds["my_var"]) != 1 {
			t.Fatalf("binds = %v, want exactly one bind of my_var", namespace.binds)
		}
		if namespace.binds["my_var"][0] != table {
			t.Error("bound value is not the returned table")
		}
	})

	t.Run("empty output name binds nothing", func(t *testing.T) {
		namespace := &recordingNamespace{}
		dispatcher := New(namespace, session.DefaultSampling())
		var calls []recordedRun

		if _, err := dispatcher.ExecuteReturningTable(ctx, runReturning(rows, nil, &calls), "SELECT a", nil, ""); err != nil {
			t.Fatal(err)
		}
		if len(namespace.binds) != 0 {
			t.Errorf("binds = %v, want none", namespace.binds)
		}
	})

	t.Run("explicit sampling", func(t *testing.T) {
		dispatcher := New(nil, session.DefaultSampling())
		var calls []recordedRun
		sampling := session.Sampling{Method: session.SampleRandom, MaxRows: 5, Fraction: 0.2}

		if _, err := dispatcher.ExecuteReturningTable(ctx, runReturning(rows, nil, &calls), "q", &sampling, "x"); err != nil {
			t.Fatal(err)
		}
		if calls[0].sampling != sampling {
			t.Errorf("sampling = %+v, want %+v", calls[0].sampling, sampling)
		}
	})

	t.Run("failure passes through", func(t *testing.T) {
		namespace := &recordingNamespace{}
		dispatcher := New(namespace, session.DefaultSampling())
		var calls []recordedRun

		outcome, err := dispatcher.ExecuteReturningTable(ctx, runReturning(result.Failure[string]("AnalysisException: no such table"), nil, &calls), "q", nil, "x")
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Succeeded() || outcome.Message() != "AnalysisException: no such table" {
			t.Errorf("outcome = %v", outcome)
		}
		if len(namespace.binds) != 0 {
			t.Error("failure was bound")
		}
	})

	t.Run("error passes through", func(t *testing.T) {
		dispatcher := New(&recordingNamespace{}, session.DefaultSampling())
		var calls []recordedRun
		want := errors.New("connection refused")

		_, err := dispatcher.ExecuteReturningTable(ctx, runReturning(result.Result[string]{}, want, &calls), "q", nil, "x")
		if !errors.Is(err, want) {
			t.Errorf("error = %v, want %v", err, want)
		}
	})

	t.Run("non-tabular output is a failure", func(t *testing.T) {
		dispatcher := New(&recordingNamespace{}, session.DefaultSampling())
		var calls []recordedRun

		outcome, err := dispatcher.ExecuteReturningTable(ctx, runReturning(result.Success("hello"), nil, &calls), "q", nil, "x")
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Succeeded() {
			t.Errorf("outcome = %v, want failure", outcome)
		}
	})
}
