// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoint describes a remote cluster-job server: where it is,
// how to authenticate, and a stable identity used to key session
// lookups.
//
// An Endpoint is immutable once constructed. Its password lives in a
// [secret.Buffer] and is only materialized as a string when a request
// is authorized. Two Endpoints built from the same URL and username
// have the same [Endpoint.Identity] regardless of password, trailing
// slashes, or host-name case.
package endpoint

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/secret"
)

// Auth is the authentication scheme used against the job server.
type Auth string

const (
	// AuthNone sends no credentials.
	AuthNone Auth = "none"
	// AuthBasic sends HTTP basic authentication.
	AuthBasic Auth = "basic"
)

// Config holds the fields for New. Password ownership moves to the
// Endpoint; the caller must not close it afterwards.
type Config struct {
	URL      string
	Auth     Auth
	Username string
	Password *secret.Buffer
}

// Endpoint identifies one job server.
type Endpoint struct {
	url      string
	auth     Auth
	username string
	password *secret.Buffer
	identity string
}

// New validates config and builds an Endpoint. When Auth is empty it is
// inferred: basic if a username is present, none otherwise.
func New(config Config) (*Endpoint, error) {
	normalized, err := normalizeURL(config.URL)
	if err != nil {
		return nil, err
	}

	auth := Auth(strings.ToLower(string(config.Auth)))
	if auth == "" {
		auth = AuthNone
		if config.Username != "" {
			auth = AuthBasic
		}
	}
	switch auth {
	case AuthNone:
	case AuthBasic:
		if config.Username == "" {
			return nil, fault.Usage("endpoint %s: basic auth requires a username", normalized)
		}
	default:
		return nil, fault.Usage("endpoint %s: unsupported auth %q (accepted: %s, %s)", normalized, config.Auth, AuthNone, AuthBasic)
	}

	return &Endpoint{
		url:      normalized,
		auth:     auth,
		username: config.Username,
		password: config.Password,
		identity: fingerprint(normalized, config.Username),
	}, nil
}

// Parse builds an Endpoint from a connection string of semicolon
// separated key=value pairs:
//
//	url=http://livy.example.com:8998;username=analyst;password=hunter2
//
// Recognized keys are url, username, password, and auth. Keys are
// case-insensitive. The password is copied into a locked buffer.
func Parse(connectionString string) (*Endpoint, error) {
	var config Config
	var password string

	for _, part := range strings.Split(connectionString, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fault.Usage("connection string: %q is not key=value", part)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "url":
			config.URL = strings.TrimSpace(value)
		case "username":
			config.Username = strings.TrimSpace(value)
		case "password":
			password = value
		case "auth":
			config.Auth = Auth(strings.TrimSpace(value))
		default:
			return nil, fault.Usage("connection string: unknown key %q (accepted: url, username, password, auth)", key)
		}
	}

	if password != "" {
		buffer, err := secret.NewFromString(password)
		if err != nil {
			return nil, fmt.Errorf("connection string: storing password: %w", err)
		}
		config.Password = buffer
	}

	endpoint, err := New(config)
	if err != nil && config.Password != nil {
		config.Password.Close()
	}
	return endpoint, err
}

// URL returns the normalized base URL (no trailing slash).
func (e *Endpoint) URL() string { return e.url }

// Auth returns the authentication scheme.
func (e *Endpoint) Auth() Auth { return e.auth }

// Username returns the configured username, possibly empty.
func (e *Endpoint) Username() string { return e.username }

// Identity returns a stable hex fingerprint of URL and username.
func (e *Endpoint) Identity() string { return e.identity }

// Authorize adds credentials to request according to the auth scheme.
func (e *Endpoint) Authorize(request *http.Request) {
	if e.auth != AuthBasic {
		return
	}
	password := ""
	if e.password != nil {
		password = e.password.String()
	}
	request.SetBasicAuth(e.username, password)
}

// ConnectionString renders the endpoint in Parse syntax without the
// password.
func (e *Endpoint) ConnectionString() string {
	if e.username == "" {
		return "url=" + e.url
	}
	return fmt.Sprintf("url=%s;username=%s;auth=%s", e.url, e.username, e.auth)
}

func (e *Endpoint) String() string {
	if e.username == "" {
		return e.url
	}
	return e.username + "@" + e.url
}

// Close releases the password buffer. The Endpoint must not be used to
// authorize requests afterwards.
func (e *Endpoint) Close() error {
	if e.password == nil {
		return nil
	}
	return e.password.Close()
}

func normalizeURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fault.Usage("endpoint url is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fault.Usage("endpoint url %q: %v", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fault.Usage("endpoint url %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return "", fault.Usage("endpoint url %q: missing host", raw)
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

func fingerprint(normalizedURL, username string) string {
	sum := blake3.Sum256([]byte(normalizedURL + "\x00" + username))
	return hex.EncodeToString(sum[:16])
}
