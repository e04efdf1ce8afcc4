// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package action

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// ErrEditCancelled is returned when the user leaves the editor with Ctrl-C,
// Ctrl-D or an empty line.
var ErrEditCancelled = errors.New("edit cancelled")

// EditPrompt is shown before the pre-filled command.
const EditPrompt = "Edit: "

// LineEditor reads one line with an initial value.
type LineEditor interface {
	Edit(initial string) (string, error)
}

// LinerEditor edits with peterh/liner. Confirmed lines are appended to a
// history file when HistoryFile is set.
type LinerEditor struct {
	HistoryFile string
}

// Edit shows initial with the cursor at its end and returns the trimmed
// result, or ErrEditCancelled.
func (e LinerEditor) Edit(initial string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if e.HistoryFile != "" {
		if f, err := os.Open(e.HistoryFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	input, err := line.PromptWithSuggestion(EditPrompt, initial, -1)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", ErrEditCancelled
		}
		return "", err
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEditCancelled
	}

	if e.HistoryFile != "" {
		line.AppendHistory(input)
		if f, err := os.OpenFile(e.HistoryFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return input, nil
}
