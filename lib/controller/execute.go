// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/livy"
	"github.com/bureau-foundation/livyctl/lib/result"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// cancelTimeout bounds the best-effort statement cancel sent after the
// caller's context ends.
const cancelTimeout = 10 * time.Second

// RunCell runs code in the interpreter of the session tracked under
// name on ep and returns its text output.
func (c *Controller) RunCell(ctx context.Context, ep *endpoint.Endpoint, name, code string) (result.Result[string], error) {
	return c.run(ctx, ep, name, func(session.Kind) (livy.StatementRequest, error) {
		return livy.StatementRequest{Code: code}, nil
	})
}

// RunCellSQL runs query through the session's SQL context. Rows come
// back as one JSON object per line, or as a schema-and-data document
// for sql sessions.
func (c *Controller) RunCellSQL(ctx context.Context, ep *endpoint.Endpoint, name, query string, sampling session.Sampling) (result.Result[string], error) {
	return c.run(ctx, ep, name, func(kind session.Kind) (livy.StatementRequest, error) {
		return queryStatement(kind, contextSQL, query, sampling)
	})
}

// RunCellHive runs query through the session's Hive context.
func (c *Controller) RunCellHive(ctx context.Context, ep *endpoint.Endpoint, name, query string, sampling session.Sampling) (result.Result[string], error) {
	return c.run(ctx, ep, name, func(kind session.Kind) (livy.StatementRequest, error) {
		return queryStatement(kind, contextHive, query, sampling)
	})
}

// run holds the key lock for the whole statement: wait for idle,
// submit, poll to completion.
func (c *Controller) run(ctx context.Context, ep *endpoint.Endpoint, name string, build func(session.Kind) (livy.StatementRequest, error)) (result.Result[string], error) {
	key, err := keyOf(ep, name)
	if err != nil {
		return result.Result[string]{}, err
	}
	unlock, err := c.locks.acquire(ctx, key)
	if err != nil {
		return result.Result[string]{}, fmt.Errorf("running statement in session %q: %w", name, err)
	}
	defer unlock()

	found, ok := c.lookup(key)
	if !ok {
		return result.Failuref[string]("no session named %q on %s; start a session first", name, ep.URL()), nil
	}
	id, assigned := found.record.RemoteID()
	if !assigned {
		return result.Failuref[string]("session %q has no remote id", name), nil
	}

	request, err := build(found.record.View().Kind)
	if err != nil {
		return result.Result[string]{}, err
	}

	client, err := c.client(found.endpoint)
	if err != nil {
		return result.Result[string]{}, err
	}

	if outcome, err := c.waitIdle(ctx, found); err != nil || !outcome.Succeeded() {
		return outcome, err
	}

	statement, err := client.SubmitStatement(ctx, id, request)
	if err != nil {
		if ctx.Err() != nil {
			c.markInterrupted(found)
		}
		return result.Result[string]{}, fmt.Errorf("running statement in session %q: %w", name, err)
	}
	_ = found.record.Transition(session.StateBusy)
	c.logger.Debug("statement submitted", "session", name, "remote_id", id, "statement_id", statement.ID)

	statement, err = c.awaitStatement(ctx, client, found, id, statement)
	if err != nil {
		return result.Result[string]{}, fmt.Errorf("running statement in session %q: %w", name, err)
	}
	_ = found.record.Transition(session.StateIdle)
	return statementResult(statement), nil
}

// waitIdle polls the session until it is idle. A session that ends up
// in error or dead, or does not become idle within the start timeout,
// is a failure result. Caller holds the key lock.
func (c *Controller) waitIdle(ctx context.Context, found *entry) (result.Result[string], error) {
	name := found.record.Name()
	deadline := c.clock.Now().Add(c.polling.StartTimeout)
	poll := c.newPoller()
	for {
		if err := c.refresh(ctx, found); err != nil {
			if ctx.Err() != nil {
				c.markInterrupted(found)
			}
			return result.Result[string]{}, err
		}
		state := found.record.State()
		switch {
		case state.Ready():
			return result.Success(""), nil
		case state.Gone():
			return result.Failuref[string]("session %q is %s", name, state), nil
		case state == session.StateError:
			return result.Failuref[string]("session %q is in an error state; check its logs", name), nil
		}
		if !c.clock.Now().Before(deadline) {
			return result.Failuref[string]("session %q did not become idle within %s (state %s)", name, c.polling.StartTimeout, state), nil
		}
		if err := poll.wait(ctx, c.clock); err != nil {
			c.markInterrupted(found)
			return result.Result[string]{}, fmt.Errorf("waiting for session %q: %w", name, err)
		}
	}
}

// awaitStatement polls until the statement finishes. When ctx ends the
// record is marked error and a cancel is sent on a detached context.
func (c *Controller) awaitStatement(ctx context.Context, client Client, found *entry, id int, statement *livy.Statement) (*livy.Statement, error) {
	var deadline time.Time
	if c.polling.StatementTimeout > 0 {
		deadline = c.clock.Now().Add(c.polling.StatementTimeout)
	}
	poll := c.newPoller()
	for !statement.Finished() {
		if !deadline.IsZero() && !c.clock.Now().Before(deadline) {
			c.cancelStatement(ctx, client, found, id, statement.ID)
			return nil, fmt.Errorf("statement %d did not finish within %s", statement.ID, c.polling.StatementTimeout)
		}
		if err := poll.wait(ctx, c.clock); err != nil {
			c.cancelStatement(ctx, client, found, id, statement.ID)
			return nil, err
		}
		next, err := client.GetStatement(ctx, id, statement.ID)
		if err != nil {
			if ctx.Err() != nil {
				c.cancelStatement(ctx, client, found, id, statement.ID)
			} else {
				_ = found.record.Transition(session.StateError)
			}
			return nil, err
		}
		statement = next
	}
	return statement, nil
}

func (c *Controller) cancelStatement(ctx context.Context, client Client, found *entry, id, statementID int) {
	c.markInterrupted(found)
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if err := client.CancelStatement(cancelCtx, id, statementID); err != nil {
		c.logger.Warn("cancelling statement failed", "session", found.record.Name(), "statement_id", statementID, "error", err)
		return
	}
	c.logger.Info("statement cancelled", "session", found.record.Name(), "statement_id", statementID)
}

func (c *Controller) markInterrupted(found *entry) {
	if err := found.record.Transition(session.StateError); err != nil {
		c.logger.Debug("not marking session error", "session", found.record.Name(), "error", err)
	}
}

// statementResult turns a finished statement into a tagged result.
// application/json output wins over text/plain so sql sessions yield
// their table document.
func statementResult(statement *livy.Statement) result.Result[string] {
	if statement.State == livy.StatementCancelled {
		return result.Failuref[string]("statement %d was cancelled", statement.ID)
	}
	output := statement.Output
	if output == nil {
		return result.Failuref[string]("statement %d finished in state %s without output", statement.ID, statement.State)
	}
	if output.Status != livy.OutputOK {
		return result.Failure[string](formatRemoteError(output))
	}
	if document := output.JSON(); document != nil {
		return result.Success(string(document))
	}
	return result.Success(output.Text())
}

func formatRemoteError(output *livy.StatementOutput) string {
	var builder strings.Builder
	builder.WriteString(output.EName)
	if output.EValue != "" {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString(output.EValue)
	}
	for _, line := range output.Traceback {
		if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
			builder.WriteString("\n")
		}
		builder.WriteString(strings.TrimRight(line, "\n"))
	}
	if builder.Len() == 0 {
		return "statement failed without an error message"
	}
	return builder.String()
}

// IsCancelled reports whether err came from the caller's context
// ending rather than from the server.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
