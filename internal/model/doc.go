// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the suggestion
// pipeline and the selection UI.
//
// # Key Types
//
//   - SearchMatch: A tool returned by semantic retrieval, with its score
//   - DirectoryContext: Project type and marker files of the working directory
//   - CommandSuggestion: One proposed command with title, explanation and risk
//   - RiskLevel: Safe, Moderate or Destructive
//   - UserAction: Execute, Copy, Edit or Abort, returned by the selector
//   - Error: A categorized error carrying a Kind for exit-code mapping
//
// # Usage
//
//	action := model.Execute("ls -la")
//	switch action.Kind {
//	case model.ActionExecute:
//	    // run action.Command
//	case model.ActionAbort:
//	    // exit 0
//	}
package model
