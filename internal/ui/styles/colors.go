// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ulm/internal/model"
)

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Purple - Selection marker, headers
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan - Commands, key hints
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - Safe commands, success status
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Amber - Moderate commands
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Rose - Destructive commands, error status
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// =============================================================================
// SURFACE COLORS
// =============================================================================

// SurfaceDim - Footer background
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}

// Overlay - Borders, separators
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

// SelectionBg - Highlighted row
var SelectionBg = lipgloss.AdaptiveColor{Light: "#BFDBFE", Dark: "#1E3A5F"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}

// TextSecondary - Titles of unselected rows
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}

// TextMuted - Explanations, hints
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// =============================================================================
// RISK COLORS
// =============================================================================

// RiskColor returns the display color for a risk level.
func RiskColor(level model.RiskLevel) lipgloss.AdaptiveColor {
	switch level {
	case model.RiskModerate:
		return Amber
	case model.RiskDestructive:
		return Rose
	default:
		return Emerald
	}
}

// =============================================================================
// ACCESSIBILITY: Shapes alongside colors
// =============================================================================

// StatusIndicatorSet contains ASCII markers that carry meaning without color.
type StatusIndicatorSet struct {
	Success  string
	Error    string
	Warning  string
	Selected string
}

// StatusIndicators is the marker set used by the selector.
var StatusIndicators = StatusIndicatorSet{
	Success:  "[OK]",
	Error:    "[X]",
	Warning:  "[!]",
	Selected: ">",
}

// RiskMarker returns the text badge shown after a command, or "" for safe
// commands. Destructive is upper case so it stands out on monochrome terminals.
func RiskMarker(level model.RiskLevel) string {
	switch level {
	case model.RiskModerate:
		return " " + StatusIndicators.Warning + " moderate"
	case model.RiskDestructive:
		return " " + StatusIndicators.Warning + " DESTRUCTIVE"
	default:
		return ""
	}
}
