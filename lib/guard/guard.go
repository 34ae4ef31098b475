// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package guard holds the pending language and session configuration
// of a kernel and refuses changes that would silently diverge from the
// running session.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// Lifecycle is the view of the kernel's session the guard needs.
type Lifecycle interface {
	SessionStarted() bool
	StopSession(ctx context.Context) error
}

// Guard validates language and configuration changes against the
// session lifecycle. Safe for concurrent use.
type Guard struct {
	lifecycle Lifecycle

	mu       sync.Mutex
	language session.Language
	config   session.Config
}

// New creates a Guard with an initial language and configuration.
func New(lifecycle Lifecycle, language session.Language, config session.Config) *Guard {
	if language == "" {
		language = session.LanguagePython
	}
	return &Guard{lifecycle: lifecycle, language: language, config: config.Clone()}
}

// ValidateLanguage accepts candidate case-insensitively.
func ValidateLanguage(candidate string) (session.Language, error) {
	return session.ParseLanguage(candidate)
}

// ChangeLanguage sets the language of the next session. It is an
// invariant violation while a session is started, whatever candidate
// is; otherwise an unknown language is a usage fault.
func (g *Guard) ChangeLanguage(candidate string) error {
	if g.lifecycle.SessionStarted() {
		return fault.Invariant("cannot change the language of a started session; stop it first")
	}
	language, err := ValidateLanguage(candidate)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.language = language
	g.mu.Unlock()
	return nil
}

// MergeConfiguration merges overrides into the stored configuration.
//
// With a started session and no force it is a usage fault and the
// configuration is untouched. With force the session is stopped first
// and restart reports that the caller must start a new one. Without a
// session the merge just happens.
func (g *Guard) MergeConfiguration(ctx context.Context, overrides session.Config, force bool) (restart bool, err error) {
	if g.lifecycle.SessionStarted() {
		if !force {
			return false, fault.Usage("a session is already running; use force to restart it with the new configuration")
		}
		if err := g.lifecycle.StopSession(ctx); err != nil {
			return false, fmt.Errorf("stopping session before reconfiguring: %w", err)
		}
		restart = true
	}
	g.mu.Lock()
	g.config = g.config.Merge(overrides)
	g.mu.Unlock()
	return restart, nil
}

// Language returns the pending language.
func (g *Guard) Language() session.Language {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.language
}

// Config returns a copy of the stored configuration, without kind.
func (g *Guard) Config() session.Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.config.Clone()
}

// SessionConfig returns the configuration to create a session with:
// the stored configuration with the pending language's kind.
func (g *Guard) SessionConfig() session.Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.config.WithKind(g.language.Kind())
}
