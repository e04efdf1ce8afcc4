// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selector

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// KEY MAPS
// =============================================================================

// BrowseKeyMap documents the Browsing bindings for the footer.
// The engine does the matching itself; these bindings only carry help text.
type BrowseKeyMap struct {
	Navigate key.Binding
	Execute  key.Binding
	Copy     key.Binding
	Edit     key.Binding
	Quit     key.Binding
}

// DefaultBrowseKeyMap returns the Browsing bindings.
func DefaultBrowseKeyMap() BrowseKeyMap {
	return BrowseKeyMap{
		Navigate: key.NewBinding(
			key.WithKeys("up", "down", "k", "j"),
			key.WithHelp("Up/Down", "Navigate"),
		),
		Execute: key.NewBinding(
			key.WithKeys("enter", "A", "a"),
			key.WithHelp("Enter/A", "Execute"),
		),
		Copy: key.NewBinding(
			key.WithKeys("K"),
			key.WithHelp("K", "Copy"),
		),
		Edit: key.NewBinding(
			key.WithKeys("B", "b"),
			key.WithHelp("B", "Edit"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "q"),
			key.WithHelp("Esc/q", "Quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k BrowseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Navigate, k.Execute, k.Copy, k.Edit, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k BrowseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// EditKeyMap documents the Editing bindings.
type EditKeyMap struct {
	Move    key.Binding
	Erase   key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultEditKeyMap returns the Editing bindings.
func DefaultEditKeyMap() EditKeyMap {
	return EditKeyMap{
		Move: key.NewBinding(
			key.WithKeys("left", "right"),
			key.WithHelp("Left/Right", "Move"),
		),
		Erase: key.NewBinding(
			key.WithKeys("backspace", "delete"),
			key.WithHelp("Bksp/Del", "Erase"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "Execute"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "Discard"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k EditKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Move, k.Erase, k.Confirm, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k EditKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// =============================================================================
// TRANSLATION
// =============================================================================

// translate converts a bubbletea key message into engine keys. Pasted text
// arrives as one message and becomes one key per rune.
func translate(msg tea.KeyMsg) []Key {
	switch msg.Type {
	case tea.KeyUp:
		return []Key{{Type: KeyUp}}
	case tea.KeyDown:
		return []Key{{Type: KeyDown}}
	case tea.KeyLeft:
		return []Key{{Type: KeyLeft}}
	case tea.KeyRight:
		return []Key{{Type: KeyRight}}
	case tea.KeyEnter:
		return []Key{{Type: KeyEnter}}
	case tea.KeyEsc:
		return []Key{{Type: KeyEsc}}
	case tea.KeyBackspace:
		return []Key{{Type: KeyBackspace}}
	case tea.KeyDelete:
		return []Key{{Type: KeyDelete}}
	case tea.KeyCtrlC:
		return []Key{{Type: KeyInterrupt}}
	case tea.KeySpace:
		return []Key{RuneKey(' ')}
	case tea.KeyRunes:
		if msg.Alt {
			return []Key{{Type: KeyOther}}
		}
		keys := make([]Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			keys = append(keys, RuneKey(r))
		}
		return keys
	default:
		return []Key{{Type: KeyOther}}
	}
}
