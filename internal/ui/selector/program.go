// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selector

import (
	"context"
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ui/styles"
)

// ErrNoSuggestions is returned by Run for an empty list. The pipeline never
// produces one, so this indicates a caller bug.
var ErrNoSuggestions = errors.New("selector: no suggestions to show")

// statusExpiredMsg asks the model to drop an expired status message.
type statusExpiredMsg struct{}

// =============================================================================
// BUBBLETEA MODEL
// =============================================================================

// Model adapts an Engine to bubbletea. All state lives in the engine; the
// model only translates messages and schedules status expiry.
type Model struct {
	engine *Engine
	view   *View
	ttl    time.Duration

	action model.UserAction
	done   bool
}

// NewModel creates a bubbletea model around engine.
func NewModel(engine *Engine, theme *styles.Theme) Model {
	return Model{
		engine: engine,
		view:   NewView(theme),
		ttl:    engine.opts.StatusTTL,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		for _, k := range translate(msg) {
			action, done := m.engine.HandleKey(k)
			if done {
				m.action = action
				m.done = true
				return m, tea.Quit
			}
		}
		if _, ok := m.engine.Status(); ok {
			return m, m.expireAfter()
		}

	case statusExpiredMsg:
		m.engine.Expire()

	case tea.WindowSizeMsg:
		m.view.SetWidth(msg.Width)
	}
	return m, nil
}

// View implements tea.Model. The final frame is blank so the menu does not
// linger above the executed command's output.
func (m Model) View() string {
	if m.done {
		return ""
	}
	return m.view.Render(m.engine)
}

// Result returns the final action and whether the session finished.
func (m Model) Result() (model.UserAction, bool) {
	return m.action, m.done
}

func (m Model) expireAfter() tea.Cmd {
	return tea.Tick(m.ttl, func(time.Time) tea.Msg {
		return statusExpiredMsg{}
	})
}

// =============================================================================
// RUN
// =============================================================================

// RunOptions are terminal I/O overrides for Run. Nil fields use the process
// stdin and stdout.
type RunOptions struct {
	Input  io.Reader
	Output io.Writer
	Theme  *styles.Theme
}

// Run shows suggestions and blocks until the user picks an action.
//
// Esc, q and Ctrl-C return Abort with a nil error. A context cancellation
// returns Abort and the context error. Any other failure of the terminal
// program is a Terminal error.
func Run(ctx context.Context, suggestions []model.CommandSuggestion, clipboard Clipboard, opts Options, ro RunOptions) (model.UserAction, error) {
	if len(suggestions) == 0 {
		return model.Abort(), ErrNoSuggestions
	}

	theme := ro.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	engine := NewEngine(suggestions, clipboard, opts)

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if ro.Input != nil {
		progOpts = append(progOpts, tea.WithInput(ro.Input))
	}
	if ro.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(ro.Output))
	}

	final, err := tea.NewProgram(NewModel(engine, theme), progOpts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Abort(), ctxErr
		}
		return model.Abort(), model.Terminal("interactive selector failed", err)
	}

	fm, ok := final.(Model)
	if !ok {
		return model.Abort(), nil
	}
	action, done := fm.Result()
	if !done {
		return model.Abort(), nil
	}
	return action, nil
}
