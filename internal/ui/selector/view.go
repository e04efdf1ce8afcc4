// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selector

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ui/styles"
	"github.com/jeranaias/ulm/internal/util"
)

const (
	headerText   = " ulm - Command Suggestions "
	editPrompt   = "Edit: "
	commandInset = "      "

	defaultWidth = 80
	minWidth     = 30
)

// =============================================================================
// VIEW
// =============================================================================

// View renders engine state. It never mutates the engine.
type View struct {
	Theme *styles.Theme
	Width int

	// Highlight enables chroma syntax coloring of commands.
	Highlight bool

	browse BrowseKeyMap
	edit   EditKeyMap
	help   help.Model
}

// NewView creates a view for theme. Highlighting follows the theme's color
// profile.
func NewView(theme *styles.Theme) *View {
	h := help.New()
	h.ShortSeparator = "  "
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(styles.Cyan)
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(styles.TextMuted)
	h.Styles.ShortSeparator = lipgloss.NewStyle()

	return &View{
		Theme:     theme,
		Width:     defaultWidth,
		Highlight: theme.ColorProfile != termenv.Ascii,
		browse:    DefaultBrowseKeyMap(),
		edit:      DefaultEditKeyMap(),
		help:      h,
	}
}

// SetWidth updates the render width.
func (v *View) SetWidth(width int) {
	if width < minWidth {
		width = minWidth
	}
	v.Width = width
}

// Render returns the full screen for e.
func (v *View) Render(e *Engine) string {
	t := v.Theme
	var b strings.Builder

	b.WriteString(t.Header.Render(headerText))
	b.WriteString("\n\n")

	for i, s := range e.Suggestions() {
		b.WriteString(v.renderItem(i, s, i == e.Selected()))
		b.WriteString("\n")
	}

	if s, ok := e.SelectedSuggestion(); ok && s.Explanation != "" {
		b.WriteString("\n")
		b.WriteString(t.Explanation.Width(v.Width - 4).Render(s.Explanation))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if e.Mode() == ModeEditing {
		b.WriteString(v.renderEditLine(e))
		b.WriteString("\n")
	}
	if st, ok := e.Status(); ok {
		style := t.StatusOK
		if st.IsError {
			style = t.StatusError
		}
		b.WriteString(style.Render(util.TruncateWidth(st.Text, v.Width)))
		b.WriteString("\n")
	}
	b.WriteString(v.renderFooter(e.Mode()))
	return b.String()
}

func (v *View) renderItem(i int, s model.CommandSuggestion, selected bool) string {
	t := v.Theme

	marker := "  "
	titleStyle := t.Title
	if selected {
		marker = t.Marker.Render(styles.StatusIndicators.Selected) + " "
		titleStyle = t.TitleActive
	}

	title := s.Title
	if title == "" {
		title = fmt.Sprintf("Suggestion %d", i+1)
	}
	risk := styles.RiskMarker(s.RiskLevel)
	room := v.Width - 6 - runewidth.StringWidth(risk)
	titleLine := marker +
		lipgloss.NewStyle().Foreground(styles.TextMuted).Render(fmt.Sprintf("[%d] ", i+1)) +
		titleStyle.Render(util.TruncateWidth(title, room))
	if risk != "" {
		titleLine += t.Risk(s.RiskLevel).Render(risk)
	}
	if selected {
		titleLine = t.RowSelected.Render(titleLine)
	}

	cmd := util.TruncateWidth(s.Command, v.Width-len(commandInset))
	return titleLine + "\n" + commandInset + v.renderCommand(cmd)
}

// renderCommand colors a shell command with chroma, falling back to the
// theme's plain command style.
func (v *View) renderCommand(cmd string) string {
	if !v.Highlight {
		return v.Theme.Command.Render(cmd)
	}
	out, err := highlightShell(cmd)
	if err != nil {
		return v.Theme.Command.Render(cmd)
	}
	return out
}

func highlightShell(code string) (string, error) {
	lexer := lexers.Get("bash")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (v *View) renderEditLine(e *Engine) string {
	t := v.Theme
	avail := v.Width - runewidth.StringWidth(editPrompt) - 1
	left, at, right := editWindow([]rune(e.Buffer()), e.Cursor(), avail)
	return t.EditPrompt.Render(editPrompt) +
		t.EditText.Render(left) +
		t.EditCursor.Render(at) +
		t.EditText.Render(right)
}

// editWindow returns the visible slice of buf split around the cursor so the
// cursor stays on screen. at is the character under the cursor, or a space
// at the end of the buffer.
func editWindow(buf []rune, cursor, avail int) (left, at, right string) {
	if avail < 1 {
		avail = 1
	}
	if cursor > len(buf) {
		cursor = len(buf)
	}

	atRune := ' '
	if cursor < len(buf) {
		atRune = buf[cursor]
	}
	used := runewidth.RuneWidth(atRune)

	// Grow leftwards first so the cursor is always visible, then fill the
	// remaining width to the right.
	start := cursor
	for start > 0 {
		w := runewidth.RuneWidth(buf[start-1])
		if used+w > avail {
			break
		}
		used += w
		start--
	}
	end := cursor
	if cursor < len(buf) {
		end = cursor + 1
	}
	for end < len(buf) {
		w := runewidth.RuneWidth(buf[end])
		if used+w > avail {
			break
		}
		used += w
		end++
	}

	left = string(buf[start:cursor])
	at = string(atRune)
	if cursor < len(buf) {
		right = string(buf[cursor+1 : end])
	}
	return left, at, right
}

func (v *View) renderFooter(mode Mode) string {
	var keys help.KeyMap = v.browse
	if mode == ModeEditing {
		keys = v.edit
	}
	return v.Theme.Footer.Render(" " + v.help.ShortHelpView(keys.ShortHelp()) + " ")
}
