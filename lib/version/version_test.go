// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	saved := GitCommit
	t.Cleanup(func() { GitCommit = saved })
	GitCommit = "abc1234"

	info := Info()
	if !strings.HasPrefix(info, Version+" (abc1234") {
		t.Errorf("Info() = %q", info)
	}
	if !strings.Contains(Full(), "Go: ") {
		t.Errorf("Full() = %q", Full())
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "livyctl/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
