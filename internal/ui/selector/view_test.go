// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selector

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ui/styles"
)

func plainView() *View {
	v := NewView(styles.NewTheme())
	v.Highlight = false
	return v
}

func TestRenderBrowsing(t *testing.T) {
	e := NewEngine(threeSuggestions(), nil, Options{})
	out := ansi.Strip(plainView().Render(e))

	assert.Contains(t, out, "ulm - Command Suggestions")
	assert.Contains(t, out, "> [1] Find large files")
	assert.Contains(t, out, "  [2] Largest entries")
	assert.Contains(t, out, "[3] Remove build dir [!] DESTRUCTIVE")
	assert.Contains(t, out, "find . -size +100M")
	assert.Contains(t, out, "Searches recursively")
	assert.Contains(t, out, "Up/Down Navigate  Enter/A Execute  K Copy  B Edit  Esc/q Quit")
	assert.NotContains(t, out, "Edit: ")
}

func TestRenderFollowsSelection(t *testing.T) {
	e := NewEngine(threeSuggestions(), nil, Options{})
	e.HandleKey(Key{Type: KeyDown})
	out := ansi.Strip(plainView().Render(e))

	assert.Contains(t, out, "> [2] Largest entries")
	assert.NotContains(t, out, "Searches recursively", "only the selected explanation is shown")
}

func TestRenderModerateMarker(t *testing.T) {
	e := NewEngine([]model.CommandSuggestion{
		{Command: "chmod -R 755 .", Title: "Fix perms", RiskLevel: model.RiskModerate},
	}, nil, Options{})
	out := ansi.Strip(plainView().Render(e))
	assert.Contains(t, out, "Fix perms [!] moderate")
}

func TestRenderUntitledSuggestion(t *testing.T) {
	e := NewEngine([]model.CommandSuggestion{{Command: "ls"}}, nil, Options{})
	out := ansi.Strip(plainView().Render(e))
	assert.Contains(t, out, "[1] Suggestion 1")
}

func TestRenderEditing(t *testing.T) {
	e := NewEngine(threeSuggestions(), nil, Options{})
	e.HandleKey(RuneKey('B'))
	out := ansi.Strip(plainView().Render(e))

	assert.Contains(t, out, "Edit: find . -size +100M")
	assert.Contains(t, out, "Left/Right Move")
	assert.Contains(t, out, "Esc Discard")
	assert.NotContains(t, out, "K Copy")
}

func TestRenderStatus(t *testing.T) {
	e := NewEngine(threeSuggestions(), &fakeClipboard{}, Options{})
	e.HandleKey(RuneKey('K'))
	out := ansi.Strip(plainView().Render(e))
	assert.Contains(t, out, "[OK] Copied to clipboard")
}

func TestRenderHighlightedKeepsText(t *testing.T) {
	v := plainView()
	v.Highlight = true
	e := NewEngine(threeSuggestions(), nil, Options{})
	out := ansi.Strip(v.Render(e))
	assert.Contains(t, out, "du -ah . | sort -rh | head")
}

func TestRenderTruncatesLongCommands(t *testing.T) {
	long := "echo " + strings.Repeat("a", 200)
	e := NewEngine([]model.CommandSuggestion{{Command: long, Title: "Long"}}, nil, Options{})
	v := plainView()
	v.SetWidth(40)

	for _, line := range strings.Split(ansi.Strip(v.Render(e)), "\n") {
		if strings.Contains(line, "echo") {
			assert.LessOrEqual(t, ansi.StringWidth(line), 40, "line %q", line)
		}
	}
}

func TestEditWindow(t *testing.T) {
	tests := []struct {
		name            string
		buf             string
		cursor, avail   int
		left, at, right string
	}{
		{"cursor at end", "ls -la", 6, 20, "ls -la", " ", ""},
		{"cursor in middle", "ls -la", 2, 20, "ls", " ", "-la"},
		{"cursor at start", "ls", 0, 20, "", "l", "s"},
		{"scrolls to keep cursor visible", "abcdefghij", 10, 4, "hij", " ", ""},
		{"fills right after left", "abcdefghij", 1, 4, "a", "b", "cd"},
		{"wide runes", "日本語", 3, 5, "本語", " ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, a, r := editWindow([]rune(tt.buf), tt.cursor, tt.avail)
			assert.Equal(t, tt.left, l, "left")
			assert.Equal(t, tt.at, a, "at")
			assert.Equal(t, tt.right, r, "right")
		})
	}
}
