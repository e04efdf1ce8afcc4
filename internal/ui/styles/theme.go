// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/ulm/internal/model"
)

// Theme holds the styled components for the selector.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header lipgloss.Style
	Query  lipgloss.Style

	// ==========================================================================
	// SUGGESTION LIST STYLES
	// ==========================================================================

	Marker       lipgloss.Style
	Title        lipgloss.Style
	TitleActive  lipgloss.Style
	Command      lipgloss.Style
	Explanation  lipgloss.Style
	RowSelected  lipgloss.Style
	RowSeparator lipgloss.Style

	// ==========================================================================
	// EDIT LINE STYLES
	// ==========================================================================

	EditPrompt lipgloss.Style
	EditText   lipgloss.Style
	EditCursor lipgloss.Style

	// ==========================================================================
	// STATUS AND FOOTER STYLES
	// ==========================================================================

	StatusOK    lipgloss.Style
	StatusError lipgloss.Style
	Footer      lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Query = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Marker = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Title = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.TitleActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.Command = lipgloss.NewStyle().
		Foreground(Cyan)

	t.Explanation = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(4)

	t.RowSelected = lipgloss.NewStyle().
		Background(SelectionBg)

	t.RowSeparator = lipgloss.NewStyle().
		Foreground(Overlay)

	t.EditPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	t.EditText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.EditCursor = lipgloss.NewStyle().
		Reverse(true)

	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald)

	t.StatusError = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	t.Footer = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(SurfaceDim)
}

// Risk returns the badge style for a risk level.
func (t *Theme) Risk(level model.RiskLevel) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(RiskColor(level))
	if level == model.RiskDestructive {
		s = s.Bold(true)
	}
	return s
}
