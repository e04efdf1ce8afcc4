// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/util"
)

func testContext() model.DirectoryContext {
	return model.DirectoryContext{
		ProjectType:      model.ProjectGo,
		MarkerFiles:      []string{"go.mod", ".git"},
		WorkingDirectory: "/home/user/project",
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"日本語テ", 1},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCompose_SectionOrder(t *testing.T) {
	p := NewComposer(0).Compose("find large files", "FIND(1) manual text", testContext())

	instr := strings.Index(p, "Respond ONLY with valid JSON")
	ref := strings.Index(p, "FIND(1) manual text")
	ctx := strings.Index(p, "Working Directory: /home/user/project")
	query := strings.Index(p, "find large files")

	assert.True(t, instr >= 0 && ref > instr, "reference must follow instructions")
	assert.True(t, ctx > ref, "context must follow reference")
	assert.True(t, query > ctx, "query must follow context")
	assert.Contains(t, p, "Project Type: Go")
	assert.NotContains(t, p, TruncationMarker)
}

func TestCompose_Deterministic(t *testing.T) {
	c := NewComposer(500)
	ref := strings.Repeat("option text ", 1000)
	a := c.Compose("q", ref, testContext())
	b := c.Compose("q", ref, testContext())
	assert.Equal(t, a, b)
}

func TestCompose_TruncatesOnlyReference(t *testing.T) {
	const budget = 600
	c := NewComposer(budget)
	query := "compress a directory into a tarball"
	ref := strings.Repeat("x", 10000)

	p := c.Compose(query, ref, testContext())

	assert.LessOrEqual(t, util.RuneLen(p), budget*4)
	assert.LessOrEqual(t, EstimateTokens(p), budget)
	assert.Contains(t, p, TruncationMarker)
	assert.Contains(t, p, SystemInstructions)
	assert.Contains(t, p, query)
	assert.Contains(t, p, testContext().FormatSummary())
}

func TestCompose_MultibyteReference(t *testing.T) {
	c := NewComposer(600)
	p := c.Compose("q", strings.Repeat("日本語", 3000), testContext())
	assert.True(t, strings.Contains(p, TruncationMarker))
	assert.LessOrEqual(t, util.RuneLen(p), 600*4)
	assert.True(t, strings.ToValidUTF8(p, "?") == p, "prompt must stay valid UTF-8")
}

func TestCompose_FixedPartsOverBudget(t *testing.T) {
	c := NewComposer(10)
	p := c.Compose("q", "some reference", testContext())
	assert.Contains(t, p, SystemInstructions)
	assert.NotContains(t, p, "some reference")
	assert.Contains(t, p, TruncationMarker)
}

func TestCompose_OmitsProjectTypeWhenNone(t *testing.T) {
	p := NewComposer(0).Compose("q", "r", model.DirectoryContext{WorkingDirectory: "/x"})
	assert.NotContains(t, p, "Project Type")
}
