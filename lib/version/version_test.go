// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = originalCommit, originalDirty })

	GitCommit = "abc1234"
	GitDirty = "false"
	if info := Info(); !strings.Contains(info, "(abc1234,") {
		t.Errorf("Info() = %q, want clean commit", info)
	}

	GitDirty = "true"
	if info := Info(); !strings.Contains(info, "(abc1234-dirty,") {
		t.Errorf("Info() = %q, want dirty marker", info)
	}
}

func TestFullIncludesGoVersion(t *testing.T) {
	if full := Full(); !strings.Contains(full, "Go: go") {
		t.Errorf("Full() = %q, missing Go version", full)
	}
}

func TestUserAgent(t *testing.T) {
	if agent := UserAgent(); !strings.HasPrefix(agent, "bureau-connect/"+Version) {
		t.Errorf("UserAgent() = %q", agent)
	}
}
