// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selector

import (
	"strings"
	"time"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ui/styles"
)

// =============================================================================
// MODES AND KEYS
// =============================================================================

// Mode is the engine's input mode.
type Mode int

const (
	ModeBrowsing Mode = iota
	ModeEditing
)

func (m Mode) String() string {
	if m == ModeEditing {
		return "editing"
	}
	return "browsing"
}

// KeyType identifies a key independent of the terminal library.
type KeyType int

const (
	KeyRune KeyType = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEsc
	KeyBackspace
	KeyDelete
	// KeyInterrupt is Ctrl-C. Raw mode swallows SIGINT, so the engine
	// treats it as Esc/q in every mode.
	KeyInterrupt
	KeyOther
)

// Key is one input event.
type Key struct {
	Type KeyType
	Rune rune
}

// RuneKey returns a printable-character key.
func RuneKey(r rune) Key {
	return Key{Type: KeyRune, Rune: r}
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Clipboard receives copied commands.
type Clipboard interface {
	WriteAll(text string) error
}

// Options configures an Engine.
type Options struct {
	// Handoff returns Copy and Edit actions to the caller instead of
	// handling K and B inside the engine.
	Handoff bool

	// StatusTTL is how long a status message stays visible (default 1s).
	StatusTTL time.Duration

	// Now is the clock used for status expiry (default time.Now).
	Now func() time.Time
}

// DefaultStatusTTL is used when Options.StatusTTL is zero.
const DefaultStatusTTL = time.Second

// Status is a transient message shown under the list.
type Status struct {
	Text    string
	IsError bool
	Expires time.Time
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine owns the selection state. It performs no I/O except the clipboard
// write on K, and it is not safe for concurrent use: the event loop is its
// only caller.
type Engine struct {
	suggestions []model.CommandSuggestion
	selected    int
	mode        Mode

	buffer []rune
	cursor int

	status *Status

	clipboard Clipboard
	opts      Options
}

// NewEngine creates an engine in Browsing mode with the first suggestion
// selected. The suggestions slice is copied.
func NewEngine(suggestions []model.CommandSuggestion, clipboard Clipboard, opts Options) *Engine {
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = DefaultStatusTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		suggestions: append([]model.CommandSuggestion(nil), suggestions...),
		clipboard:   clipboard,
		opts:        opts,
	}
}

// Suggestions returns the fixed suggestion list.
func (e *Engine) Suggestions() []model.CommandSuggestion { return e.suggestions }

// Selected returns the selected index.
func (e *Engine) Selected() int { return e.selected }

// Mode returns the current input mode.
func (e *Engine) Mode() Mode { return e.mode }

// Buffer returns the edit buffer. It is only meaningful in Editing mode.
func (e *Engine) Buffer() string { return string(e.buffer) }

// Cursor returns the edit cursor as a rune offset into Buffer.
func (e *Engine) Cursor() int { return e.cursor }

// SelectedSuggestion returns the highlighted suggestion.
func (e *Engine) SelectedSuggestion() (model.CommandSuggestion, bool) {
	if len(e.suggestions) == 0 {
		return model.CommandSuggestion{}, false
	}
	return e.suggestions[e.selected], true
}

// Status returns the current status message if it has not expired.
func (e *Engine) Status() (Status, bool) {
	if e.status == nil || !e.opts.Now().Before(e.status.Expires) {
		return Status{}, false
	}
	return *e.status, true
}

// Expire drops an expired status message and reports whether it did.
func (e *Engine) Expire() bool {
	if e.status == nil || e.opts.Now().Before(e.status.Expires) {
		return false
	}
	e.status = nil
	return true
}

// HandleKey applies one key. When done is true the session is over and
// action is the final decision.
//
// In editing mode Enter returns Execute with the buffer, except when the
// buffer is empty or whitespace only: the engine then stays in editing
// mode and shows a "Command is empty" status instead of executing.
func (e *Engine) HandleKey(k Key) (action model.UserAction, done bool) {
	if k.Type == KeyInterrupt {
		return model.Abort(), true
	}

	// Any key dismisses the previous message; a new one may be set below.
	e.status = nil

	if e.mode == ModeEditing {
		return e.handleEditing(k)
	}
	return e.handleBrowsing(k)
}

func (e *Engine) handleBrowsing(k Key) (model.UserAction, bool) {
	switch k.Type {
	case KeyUp:
		e.selectPrevious()
	case KeyDown:
		e.selectNext()
	case KeyEnter:
		return e.execute()
	case KeyEsc:
		return model.Abort(), true
	case KeyRune:
		switch k.Rune {
		case 'k':
			e.selectPrevious()
		case 'j':
			e.selectNext()
		case 'A', 'a':
			return e.execute()
		case 'K':
			return e.copySelected()
		case 'B', 'b':
			return e.beginEdit()
		case 'q':
			return model.Abort(), true
		}
	}
	return model.UserAction{}, false
}

func (e *Engine) handleEditing(k Key) (model.UserAction, bool) {
	switch k.Type {
	case KeyRune:
		e.buffer = append(e.buffer, 0)
		copy(e.buffer[e.cursor+1:], e.buffer[e.cursor:])
		e.buffer[e.cursor] = k.Rune
		e.cursor++
	case KeyLeft:
		if e.cursor > 0 {
			e.cursor--
		}
	case KeyRight:
		if e.cursor < len(e.buffer) {
			e.cursor++
		}
	case KeyBackspace:
		if e.cursor > 0 {
			e.buffer = append(e.buffer[:e.cursor-1], e.buffer[e.cursor:]...)
			e.cursor--
		}
	case KeyDelete:
		if e.cursor < len(e.buffer) {
			e.buffer = append(e.buffer[:e.cursor], e.buffer[e.cursor+1:]...)
		}
	case KeyEnter:
		cmd := string(e.buffer)
		if strings.TrimSpace(cmd) == "" {
			e.setStatus(styles.StatusIndicators.Error+" Command is empty", true)
			return model.UserAction{}, false
		}
		return model.Execute(cmd), true
	case KeyEsc:
		e.mode = ModeBrowsing
		e.buffer = nil
		e.cursor = 0
	}
	return model.UserAction{}, false
}

func (e *Engine) selectPrevious() {
	if len(e.suggestions) == 0 {
		return
	}
	if e.selected == 0 {
		e.selected = len(e.suggestions) - 1
		return
	}
	e.selected--
}

func (e *Engine) selectNext() {
	if len(e.suggestions) == 0 {
		return
	}
	e.selected = (e.selected + 1) % len(e.suggestions)
}

func (e *Engine) execute() (model.UserAction, bool) {
	s, ok := e.SelectedSuggestion()
	if !ok {
		return model.UserAction{}, false
	}
	return model.Execute(s.Command), true
}

func (e *Engine) copySelected() (model.UserAction, bool) {
	s, ok := e.SelectedSuggestion()
	if !ok {
		return model.UserAction{}, false
	}
	if e.opts.Handoff {
		return model.Copy(s.Command), true
	}

	if e.clipboard == nil {
		e.setStatus(styles.StatusIndicators.Error+" Clipboard unavailable", true)
		return model.UserAction{}, false
	}
	if err := e.clipboard.WriteAll(s.Command); err != nil {
		e.setStatus(styles.StatusIndicators.Error+" Clipboard unavailable: "+err.Error(), true)
		return model.UserAction{}, false
	}
	e.setStatus(styles.StatusIndicators.Success+" Copied to clipboard", false)
	return model.UserAction{}, false
}

func (e *Engine) beginEdit() (model.UserAction, bool) {
	s, ok := e.SelectedSuggestion()
	if !ok {
		return model.UserAction{}, false
	}
	if e.opts.Handoff {
		return model.Edit(s.Command), true
	}
	e.mode = ModeEditing
	e.buffer = []rune(s.Command)
	e.cursor = len(e.buffer)
	return model.UserAction{}, false
}

func (e *Engine) setStatus(text string, isErr bool) {
	e.status = &Status{
		Text:    text,
		IsError: isErr,
		Expires: e.opts.Now().Add(e.opts.StatusTTL),
	}
}
