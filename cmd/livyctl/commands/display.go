// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// streamDisplay writes kernel output to out and errors to errOut,
// remembering whether any error was shown.
type streamDisplay struct {
	out    io.Writer
	errOut io.Writer
	failed bool
}

func (d *streamDisplay) Write(text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(d.out, strings.TrimRight(text, "\n"))
}

func (d *streamDisplay) SendError(text string) {
	d.failed = true
	fmt.Fprintln(d.errOut, strings.TrimRight(text, "\n"))
}

// bindings collects values bound by table-returning queries.
type bindings struct {
	values map[string]any
}

func newBindings() *bindings {
	return &bindings{values: make(map[string]any)}
}

func (b *bindings) Bind(name string, value any) {
	b.values[name] = value
}

// names returns the bound names, sorted.
func (b *bindings) names() []string {
	names := make([]string, 0, len(b.values))
	for name := range b.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
