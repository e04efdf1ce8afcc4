// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// SEARCH MATCH
// =============================================================================

// SearchMatch is a tool found by semantic retrieval.
// Matches are ordered by descending Score.
type SearchMatch struct {
	ToolName    string  `json:"tool_name"`
	Section     string  `json:"section"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`

	// SourcePath is the manpage file the entry was indexed from, if known.
	SourcePath string `json:"source_path,omitempty"`
}

// String returns the tool in man(1) notation, e.g. "find(1)".
func (m SearchMatch) String() string {
	if m.Section == "" {
		return m.ToolName
	}
	return fmt.Sprintf("%s(%s)", m.ToolName, m.Section)
}

// =============================================================================
// RISK LEVEL
// =============================================================================

// RiskLevel classifies a suggested command for display emphasis.
// The zero value is RiskSafe.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskModerate
	RiskDestructive
)

// String returns the lowercase wire name of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskModerate:
		return "moderate"
	case RiskDestructive:
		return "destructive"
	default:
		return "safe"
	}
}

// ParseRiskLevel converts a wire value into a RiskLevel.
// Matching is case-insensitive. The second result is false when the value
// is not one of safe, moderate or destructive.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return RiskSafe, true
	case "moderate":
		return RiskModerate, true
	case "destructive":
		return RiskDestructive, true
	default:
		return RiskSafe, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// =============================================================================
// COMMAND SUGGESTION
// =============================================================================

// CommandSuggestion is one command proposed by the generative backend.
// Command is never empty once a suggestion has been validated.
type CommandSuggestion struct {
	Command     string    `json:"command"`
	Title       string    `json:"title"`
	Explanation string    `json:"explanation"`
	RiskLevel   RiskLevel `json:"risk_level"`
}

// =============================================================================
// USER ACTION
// =============================================================================

// ActionKind identifies the variant of a UserAction.
type ActionKind int

const (
	ActionAbort ActionKind = iota
	ActionExecute
	ActionCopy
	ActionEdit
)

// String returns the action name.
func (k ActionKind) String() string {
	switch k {
	case ActionExecute:
		return "execute"
	case ActionCopy:
		return "copy"
	case ActionEdit:
		return "edit"
	default:
		return "abort"
	}
}

// UserAction is the final decision returned by the selector.
// Command is empty for ActionAbort.
type UserAction struct {
	Kind    ActionKind
	Command string
}

// Execute returns an action that runs command.
func Execute(command string) UserAction {
	return UserAction{Kind: ActionExecute, Command: command}
}

// Copy returns an action that copies command to the clipboard.
func Copy(command string) UserAction {
	return UserAction{Kind: ActionCopy, Command: command}
}

// Edit returns an action that opens command in a line editor.
func Edit(command string) UserAction {
	return UserAction{Kind: ActionEdit, Command: command}
}

// Abort returns the cancellation action.
func Abort() UserAction {
	return UserAction{Kind: ActionAbort}
}

func (a UserAction) String() string {
	if a.Kind == ActionAbort {
		return "abort"
	}
	return a.Kind.String() + "(" + a.Command + ")"
}
