// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package livy is a typed HTTP client for the interactive-session REST
// API of an Apache Livy job server.
//
// The client mirrors the server's wire format with its own types and
// knows nothing about logical session names or lifecycle bookkeeping;
// that lives in lib/controller. Every failure it returns is a transport
// fault (lib/fault). Non-2xx responses carry a *ServerError in the
// chain.
package livy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/bureau-foundation/livyctl/lib/clock"
	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/netutil"
	"github.com/bureau-foundation/livyctl/lib/version"
)

// DefaultRequestedBy is the X-Requested-By value sent when none is
// configured. Livy rejects mutating requests without the header when
// CSRF protection is enabled.
const DefaultRequestedBy = "livyctl"

// ClientConfig configures a Client.
type ClientConfig struct {
	// Endpoint is the job server to talk to. Required.
	Endpoint *endpoint.Endpoint

	// HTTPClient defaults to a client with no timeout; deadlines come
	// from the request context.
	HTTPClient *http.Client

	Logger *slog.Logger

	// Clock drives retry backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Retry defaults to DefaultRetryPolicy() when MaxAttempts is zero.
	Retry RetryPolicy

	RequestedBy string
}

// Client talks to one job server endpoint. Safe for concurrent use.
type Client struct {
	endpoint    *endpoint.Endpoint
	httpClient  *http.Client
	logger      *slog.Logger
	clock       clock.Clock
	retry       RetryPolicy
	requestedBy string
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == nil {
		return nil, fmt.Errorf("livy: endpoint is required")
	}
	client := &Client{
		endpoint:    config.Endpoint,
		httpClient:  config.HTTPClient,
		logger:      config.Logger,
		clock:       config.Clock,
		retry:       config.Retry,
		requestedBy: config.RequestedBy,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	if client.clock == nil {
		client.clock = clock.Real()
	}
	if client.retry.MaxAttempts == 0 {
		client.retry = DefaultRetryPolicy()
	}
	if client.requestedBy == "" {
		client.requestedBy = DefaultRequestedBy
	}
	return client, nil
}

// Endpoint returns the endpoint this client talks to.
func (c *Client) Endpoint() *endpoint.Endpoint { return c.endpoint }

// CreateSession starts a new interactive session. body is the creation
// request as the server expects it (kind, conf, resources, ...).
func (c *Client) CreateSession(ctx context.Context, body map[string]any) (*Session, error) {
	var created Session
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, body, &created); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &created, nil
}

// ListSessions returns every session on the server, following the
// server's paging until the reported total has been read.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	for {
		query := url.Values{"from": {strconv.Itoa(len(sessions))}}
		var page SessionList
		if err := c.do(ctx, http.MethodGet, "/sessions", query, nil, &page); err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}
		sessions = append(sessions, page.Sessions...)
		if len(page.Sessions) == 0 || len(sessions) >= page.Total {
			return sessions, nil
		}
	}
}

// GetSession returns one session.
func (c *Client) GetSession(ctx context.Context, id int) (*Session, error) {
	var found Session
	if err := c.do(ctx, http.MethodGet, sessionPath(id), nil, nil, &found); err != nil {
		return nil, fmt.Errorf("getting session %d: %w", id, err)
	}
	return &found, nil
}

// GetSessionState returns the raw server state string of one session.
func (c *Client) GetSessionState(ctx context.Context, id int) (string, error) {
	var state SessionState
	if err := c.do(ctx, http.MethodGet, sessionPath(id)+"/state", nil, nil, &state); err != nil {
		return "", fmt.Errorf("getting state of session %d: %w", id, err)
	}
	return state.State, nil
}

// DeleteSession kills a session and releases its resources.
func (c *Client) DeleteSession(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodDelete, sessionPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting session %d: %w", id, err)
	}
	return nil
}

// GetSessionLog returns up to size log lines starting at line from. A
// negative from leaves the start to the server, which returns the last
// size lines.
func (c *Client) GetSessionLog(ctx context.Context, id, from, size int) (*SessionLog, error) {
	query := url.Values{"size": {strconv.Itoa(size)}}
	if from >= 0 {
		query.Set("from", strconv.Itoa(from))
	}
	var log SessionLog
	if err := c.do(ctx, http.MethodGet, sessionPath(id)+"/log", query, nil, &log); err != nil {
		return nil, fmt.Errorf("getting log of session %d: %w", id, err)
	}
	return &log, nil
}

// SubmitStatement queues code for execution in a session.
func (c *Client) SubmitStatement(ctx context.Context, id int, request StatementRequest) (*Statement, error) {
	var statement Statement
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/statements", nil, request, &statement); err != nil {
		return nil, fmt.Errorf("submitting statement to session %d: %w", id, err)
	}
	return &statement, nil
}

// GetStatement returns the current state of a statement.
func (c *Client) GetStatement(ctx context.Context, id, statementID int) (*Statement, error) {
	var statement Statement
	path := sessionPath(id) + "/statements/" + strconv.Itoa(statementID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &statement); err != nil {
		return nil, fmt.Errorf("getting statement %d of session %d: %w", statementID, id, err)
	}
	return &statement, nil
}

// CancelStatement asks the server to cancel a running statement.
func (c *Client) CancelStatement(ctx context.Context, id, statementID int) error {
	path := sessionPath(id) + "/statements/" + strconv.Itoa(statementID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, struct{}{}, nil); err != nil {
		return fmt.Errorf("cancelling statement %d of session %d: %w", statementID, id, err)
	}
	return nil
}

func sessionPath(id int) string {
	return "/sessions/" + strconv.Itoa(id)
}

// do performs one logical request with retry. A nil result discards the
// response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, requestBody, result any) error {
	var encoded []byte
	if requestBody != nil {
		var err error
		encoded, err = json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("livy: encoding request body: %w", err)
		}
	}

	attempts := c.retry.attempts(method)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := c.retry.backoff(attempt - 1)
			c.logger.Warn("retrying job server request",
				"method", method,
				"path", path,
				"attempt", attempt,
				"backoff", wait,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return fault.Transport("livy: %s %s: %w", method, path, ctx.Err())
			case <-c.clock.After(wait):
			}
		}

		responseBody, retryable, err := c.attempt(ctx, method, path, query, encoded)
		if err == nil {
			if result == nil || len(bytes.TrimSpace(responseBody)) == 0 {
				return nil
			}
			if err := json.Unmarshal(responseBody, result); err != nil {
				return fault.Transport("livy: decoding %s %s response: %w", method, path, err)
			}
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return fault.Transport("%w", lastErr)
}

// attempt sends a single HTTP request. It reports whether a failure is
// worth retrying.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, encoded []byte) ([]byte, bool, error) {
	requestURL := c.endpoint.URL() + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if encoded != nil {
		bodyReader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, false, fmt.Errorf("livy: creating request: %w", err)
	}
	requestID := uuid.NewString()
	if encoded != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Requested-By", c.requestedBy)
	request.Header.Set("User-Agent", version.UserAgent())
	request.Header.Set("X-Request-Id", requestID)
	c.endpoint.Authorize(request)

	c.logger.Debug("job server request", "method", method, "path", path, "request_id", requestID)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, netutil.IsRetryableNetError(err), fmt.Errorf("livy: %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		serverErr := &ServerError{
			StatusCode: response.StatusCode,
			Method:     method,
			Path:       path,
			Message:    serverMessage(netutil.ErrorBody(response.Body)),
		}
		return nil, c.retry.retryableStatus(response.StatusCode), serverErr
	}

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, netutil.IsRetryableNetError(err), fmt.Errorf("livy: reading %s %s response: %w", method, path, err)
	}
	return responseBody, false, nil
}
