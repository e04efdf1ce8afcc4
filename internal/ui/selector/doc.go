// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package selector implements the interactive suggestion menu.

The Engine is a pure state machine over Key values: it owns the selected
index, the Browsing/Editing mode, the edit buffer and cursor, and a transient
status message. HandleKey returns a final model.UserAction once the user
executes, edits (in handoff mode), copies (in handoff mode) or aborts.

# Bindings

Browsing:

	Up/k       previous suggestion (wraps)
	Down/j     next suggestion (wraps)
	Enter/A    execute the selected command
	K          copy to the clipboard and stay in the menu
	B          edit the selected command inline
	Esc/q      abort

Editing:

	Left/Right   move the cursor
	Bksp/Del     delete before/under the cursor
	Enter        execute the edited line
	Esc          discard edits and return to Browsing

Ctrl-C aborts in either mode.

Run wraps the engine in a bubbletea program. Callers hold a terminal.Guard
around Run so the terminal is restored even if the program panics.
*/
package selector
