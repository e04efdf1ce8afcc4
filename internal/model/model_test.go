// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  RiskLevel
		known bool
	}{
		{"safe", RiskSafe, true},
		{"Moderate", RiskModerate, true},
		{" DESTRUCTIVE ", RiskDestructive, true},
		{"", RiskSafe, false},
		{"high", RiskSafe, false},
	}

	for _, tt := range tests {
		got, ok := ParseRiskLevel(tt.in)
		if got != tt.want || ok != tt.known {
			t.Errorf("ParseRiskLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.known)
		}
	}
}

func TestRiskLevelZeroValueIsSafe(t *testing.T) {
	var r RiskLevel
	assert.Equal(t, RiskSafe, r)
	assert.Equal(t, "safe", r.String())
}

func TestUserActionConstructors(t *testing.T) {
	assert.Equal(t, UserAction{Kind: ActionExecute, Command: "ls"}, Execute("ls"))
	assert.Equal(t, UserAction{Kind: ActionCopy, Command: "ls"}, Copy("ls"))
	assert.Equal(t, UserAction{Kind: ActionEdit, Command: "ls"}, Edit("ls"))
	assert.Equal(t, UserAction{}, Abort())
	assert.Equal(t, "execute(ls)", Execute("ls").String())
	assert.Equal(t, "abort", Abort().String())
}

func TestSearchMatchString(t *testing.T) {
	assert.Equal(t, "find(1)", SearchMatch{ToolName: "find", Section: "1"}.String())
	assert.Equal(t, "find", SearchMatch{ToolName: "find"}.String())
}

func TestFormatSummary(t *testing.T) {
	t.Run("with project type", func(t *testing.T) {
		ctx := DirectoryContext{
			ProjectType:      ProjectRust,
			MarkerFiles:      []string{"Cargo.toml", "package.json"},
			WorkingDirectory: "/home/user/project",
		}
		want := "Working Directory: /home/user/project\n" +
			"Project Type: Rust\n" +
			"Marker Files: Cargo.toml, package.json"
		assert.Equal(t, want, ctx.FormatSummary())
	})

	t.Run("without project type", func(t *testing.T) {
		ctx := DirectoryContext{WorkingDirectory: "/nope"}
		got := ctx.FormatSummary()
		assert.NotContains(t, got, "Project Type")
		assert.Equal(t, "Working Directory: /nope\nMarker Files: none", got)
	})

	t.Run("unknown is still rendered", func(t *testing.T) {
		ctx := DirectoryContext{ProjectType: ProjectUnknown, WorkingDirectory: "/tmp"}
		assert.Contains(t, ctx.FormatSummary(), "Project Type: Unknown")
	})
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("embedding query: %w", Connectivity("cannot reach backend", cause))

	assert.Equal(t, KindConnectivity, KindOf(err))
	assert.True(t, IsKind(err, KindConnectivity))
	assert.False(t, IsKind(err, KindMalformedResponse))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, &Error{Kind: KindConnectivity}))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestMalformedResponseHidesRaw(t *testing.T) {
	err := MalformedResponse(`{"garbage": true}`, nil)
	assert.NotContains(t, err.Error(), "garbage")
	assert.Equal(t, `{"garbage": true}`, err.Raw)
}

func TestNoMatchingToolsEchoesQuery(t *testing.T) {
	err := NoMatchingTools("find large files")
	assert.Contains(t, err.Error(), `"find large files"`)
	assert.Equal(t, "find large files", err.Query)
}
