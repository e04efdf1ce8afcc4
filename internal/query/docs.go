// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/logging"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/prompt"
	"github.com/jeranaias/ulm/internal/util"
)

// maxSourceSize bounds how much of a manpage source file is read.
const maxSourceSize = 4 << 20

// =============================================================================
// DOC LOADER
// =============================================================================

// RenderFunc produces formatted manpage text for a tool.
type RenderFunc func(ctx context.Context, section, tool string) ([]byte, error)

// DocLoader fetches the reference text for a search match.
type DocLoader struct {
	render  RenderFunc
	cache   *DocCache
	timeout time.Duration
	log     *zap.Logger
}

// NewDocLoader returns a loader that shells out to man(1) and falls back
// to reading the indexed source file.
func NewDocLoader(log *zap.Logger) *DocLoader {
	return &DocLoader{
		render:  RenderWithMan,
		cache:   NewDocCache(0, 0),
		timeout: 10 * time.Second,
		log:     logging.OrNop(log),
	}
}

// WithRenderer replaces the man(1) invocation. Used by tests and by
// platforms without man.
func (l *DocLoader) WithRenderer(fn RenderFunc) *DocLoader {
	l.render = fn
	return l
}

// Load returns plain manpage text for m.
func (l *DocLoader) Load(ctx context.Context, m model.SearchMatch) (string, error) {
	if m.SourcePath != "" {
		if text, ok := l.cache.Get(m.SourcePath); ok {
			return text, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	text := ""
	out, err := l.render(ctx, m.Section, m.ToolName)
	if err == nil {
		text = CleanManOutput(string(out))
	} else {
		l.log.Debug("man render failed, reading source",
			zap.String("tool", m.String()), zap.Error(err))
	}

	if strings.TrimSpace(text) == "" && m.SourcePath != "" {
		text, err = ReadSource(m.SourcePath)
	}
	if err != nil {
		return "", fmt.Errorf("loading documentation for %s: %w", m, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no documentation found for %s", m)
	}

	if m.SourcePath != "" {
		if info, statErr := os.Stat(m.SourcePath); statErr == nil {
			l.cache.Put(m.SourcePath, text, info.ModTime())
		}
	}
	return text, nil
}

// CacheStats exposes the loader's cache counters.
func (l *DocLoader) CacheStats() DocCacheStats {
	return l.cache.Stats()
}

// RenderWithMan runs `man <section> <tool>` with paging disabled and a
// fixed 80 column width.
func RenderWithMan(ctx context.Context, section, tool string) ([]byte, error) {
	args := []string{tool}
	if section != "" {
		args = []string{section, tool}
	}
	cmd := exec.CommandContext(ctx, "man", args...)
	cmd.Env = append(os.Environ(),
		"MANPAGER=cat",
		"PAGER=cat",
		"MANWIDTH=80",
		"GROFF_NO_SGR=1",
		"MAN_KEEP_FORMATTING=",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// CleanManOutput removes overstrike bold/underline and ANSI sequences.
func CleanManOutput(s string) string {
	if strings.ContainsRune(s, '\b') {
		out := make([]rune, 0, len(s))
		for _, r := range s {
			if r == '\b' {
				if len(out) > 0 {
					out = out[:len(out)-1]
				}
				continue
			}
			out = append(out, r)
		}
		s = string(out)
	}
	return ansi.Strip(s)
}

// ReadSource reads a roff manpage file, gzipped or not, and converts it
// to plain text with the same section layout man(1) produces.
func ReadSource(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("decompressing %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSourceSize))
	if err != nil {
		return "", err
	}
	return RoffToText(string(data)), nil
}

// =============================================================================
// ROFF
// =============================================================================

var roffEscapes = strings.NewReplacer(
	`\fB`, "", `\fI`, "", `\fR`, "", `\fP`, "", `\f(CW`, "", `\f[]`, "",
	`\-`, "-", `\(em`, "--", `\(en`, "-", `\(aq`, "'", `\(dq`, `"`,
	`\(lq`, `"`, `\(rq`, `"`, `\(bu`, "*", `\e`, `\`, `\&`, "", `\ `, " ",
	`\|`, "", `\^`, "", `\c`, "",
)

// alternating macros join their arguments without spaces.
var alternatingMacros = map[string]bool{
	"BR": true, "BI": true, "IR": true, "IB": true, "RB": true, "RI": true,
}

// RoffToText is a small man(7)/mdoc(7) renderer: enough to recover
// section headers, the NAME line and readable option text.
func RoffToText(src string) string {
	var sb strings.Builder
	const indent = "       "

	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(line, `.\"`) || strings.HasPrefix(line, `'\"`) {
			continue
		}
		if !strings.HasPrefix(line, ".") && !strings.HasPrefix(line, "'") {
			if text := roffEscapes.Replace(line); text != "" {
				sb.WriteString(indent)
				sb.WriteString(text)
			}
			sb.WriteByte('\n')
			continue
		}

		macro, args := splitMacro(line[1:])
		switch macro {
		case "TH", "Dd", "Dt", "Os", "so", "ds", "de", "nr", "ie", "el", "if", "ft", "ad", "na", "nh", "hy", "in", "ll":
		case "SH", "Sh", "SS", "Ss":
			sb.WriteByte('\n')
			sb.WriteString(strings.ToUpper(strings.Join(args, " ")))
			sb.WriteByte('\n')
		case "PP", "P", "LP", "sp", "br", "TP", "Pp":
			sb.WriteByte('\n')
		case "Nd":
			sb.WriteString(indent + "- " + strings.Join(args, " ") + "\n")
		default:
			if len(args) == 0 {
				continue
			}
			sep := " "
			if alternatingMacros[macro] {
				sep = ""
			}
			sb.WriteString(indent)
			sb.WriteString(strings.Join(args, sep))
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String()) + "\n"
}

// splitMacro returns the macro name and its unquoted, unescaped arguments.
func splitMacro(s string) (string, []string) {
	s = strings.TrimSpace(s)
	name, rest, _ := strings.Cut(s, " ")
	var args []string
	rest = strings.TrimSpace(rest)
	for rest != "" {
		var arg string
		if rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				arg, rest = rest[1:], ""
			} else {
				arg, rest = rest[1:end+1], rest[end+2:]
			}
		} else {
			arg, rest, _ = strings.Cut(rest, " ")
		}
		if arg = roffEscapes.Replace(arg); arg != "" {
			args = append(args, arg)
		}
		rest = strings.TrimSpace(rest)
	}
	return name, args
}

// =============================================================================
// SECTIONS
// =============================================================================

// Section is one top-level manpage section.
type Section struct {
	Name string
	Body string
}

// SplitSections splits formatted manpage text on unindented upper-case
// header lines. Text before the first header gets an empty Name.
func SplitSections(text string) []Section {
	var (
		sections []Section
		cur      Section
		body     []string
		started  bool
	)
	flush := func() {
		cur.Body = strings.Trim(strings.Join(body, "\n"), "\n")
		if started || strings.TrimSpace(cur.Body) != "" {
			sections = append(sections, cur)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if isSectionHeader(line) {
			flush()
			cur = Section{Name: strings.TrimSpace(line)}
			body = body[:0]
			started = true
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// Find returns the body of the named section.
func Find(sections []Section, name string) (string, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s.Body, true
		}
	}
	return "", false
}

func isSectionHeader(line string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	hasLetter := false
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		}
	}
	return hasLetter && !strings.ContainsAny(line, "()")
}

// =============================================================================
// TRUNCATION
// =============================================================================

var sectionPriority = map[string]int{
	"NAME":        0,
	"SYNOPSIS":    1,
	"OPTIONS":     2,
	"DESCRIPTION": 3,
}

// TruncateReference fits text into budget runes. Whole sections are kept
// in the order NAME, SYNOPSIS, OPTIONS, DESCRIPTION, then the rest; the
// first section that does not fit is cut at a line boundary. Kept
// sections appear in their original order followed by the truncation
// marker. Text already within budget is returned unchanged.
func TruncateReference(text string, budget int) string {
	if util.RuneLen(text) <= budget {
		return text
	}

	tail := "\n\n" + prompt.TruncationMarker
	avail := budget - util.RuneLen(tail)
	if avail <= 0 {
		return prompt.TruncationMarker
	}

	sections := SplitSections(text)
	order := make([]int, len(sections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return priorityOf(sections[order[a]].Name) < priorityOf(sections[order[b]].Name)
	})

	kept := make(map[int]string, len(sections))
	for _, i := range order {
		s := renderSection(sections[i])
		n := util.RuneLen(s) + 1
		if n <= avail {
			kept[i] = s
			avail -= n
			continue
		}
		if avail > 1 {
			kept[i] = cutAtLine(s, avail-1)
		}
		break
	}

	var sb strings.Builder
	for i := range sections {
		if s, ok := kept[i]; ok && s != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(s)
		}
	}
	sb.WriteString(tail)
	return sb.String()
}

func priorityOf(name string) int {
	if p, ok := sectionPriority[name]; ok {
		return p
	}
	return len(sectionPriority)
}

func renderSection(s Section) string {
	if s.Name == "" {
		return s.Body
	}
	return s.Name + "\n" + s.Body
}

// cutAtLine returns at most n runes of s, backing up to the last newline
// when one falls in the second half of the cut.
func cutAtLine(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut
}
