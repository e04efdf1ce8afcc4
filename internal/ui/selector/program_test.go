// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selector

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ui/styles"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelUpdateNavigatesAndQuits(t *testing.T) {
	m := NewModel(NewEngine(threeSuggestions(), nil, Options{}), styles.NewTheme())

	next, cmd := m.Update(runes("j"))
	assert.Nil(t, cmd)
	m = next.(Model)
	assert.Equal(t, 1, m.engine.Selected())

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	m = next.(Model)
	action, done := m.Result()
	assert.True(t, done)
	assert.Equal(t, model.Execute("du -ah . | sort -rh | head"), action)
	assert.Empty(t, m.View(), "final frame is blank")
}

func TestModelPasteWhileEditing(t *testing.T) {
	m := NewModel(NewEngine([]model.CommandSuggestion{{Command: "ls"}}, nil, Options{}), styles.NewTheme())
	next, _ := m.Update(runes("B"))
	next, _ = next.(Model).Update(tea.KeyMsg{Type: tea.KeySpace})
	next, _ = next.(Model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-la"), Paste: true})
	m = next.(Model)
	assert.Equal(t, "ls -la", m.engine.Buffer())
}

func TestModelSchedulesStatusExpiry(t *testing.T) {
	m := NewModel(NewEngine(threeSuggestions(), &fakeClipboard{}, Options{}), styles.NewTheme())

	_, cmd := m.Update(runes("K"))
	assert.NotNil(t, cmd, "a status message schedules its own expiry")

	_, cmd = m.Update(statusExpiredMsg{})
	assert.Nil(t, cmd)
}

func TestModelCtrlCAborts(t *testing.T) {
	m := NewModel(NewEngine(threeSuggestions(), nil, Options{}), styles.NewTheme())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	action, done := next.(Model).Result()
	assert.True(t, done)
	assert.Equal(t, model.Abort(), action)
}

func TestModelWindowSize(t *testing.T) {
	m := NewModel(NewEngine(threeSuggestions(), nil, Options{}), styles.NewTheme())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, next.(Model).view.Width)

	next, _ = m.Update(tea.WindowSizeMsg{Width: 10, Height: 5})
	assert.Equal(t, minWidth, next.(Model).view.Width)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		msg  tea.KeyMsg
		want []Key
	}{
		{tea.KeyMsg{Type: tea.KeyUp}, []Key{{Type: KeyUp}}},
		{tea.KeyMsg{Type: tea.KeyEsc}, []Key{{Type: KeyEsc}}},
		{tea.KeyMsg{Type: tea.KeyDelete}, []Key{{Type: KeyDelete}}},
		{tea.KeyMsg{Type: tea.KeyCtrlC}, []Key{{Type: KeyInterrupt}}},
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, []Key{RuneKey(' ')}},
		{runes("ab"), []Key{RuneKey('a'), RuneKey('b')}},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k"), Alt: true}, []Key{{Type: KeyOther}}},
		{tea.KeyMsg{Type: tea.KeyTab}, []Key{{Type: KeyOther}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, translate(tt.msg), "translate(%v)", tt.msg)
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  model.UserAction
	}{
		{"down then enter", "j\r", model.Execute("du -ah . | sort -rh | head")},
		{"quit", "q", model.Abort()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := Run(context.Background(), threeSuggestions(), nil, Options{}, RunOptions{
				Input:  strings.NewReader(tt.input),
				Output: io.Discard,
				Theme:  styles.NewTheme(),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, action)
		})
	}
}

func TestRunRejectsEmptyList(t *testing.T) {
	action, err := Run(context.Background(), nil, nil, Options{}, RunOptions{})
	assert.ErrorIs(t, err, ErrNoSuggestions)
	assert.Equal(t, model.Abort(), action)
}
