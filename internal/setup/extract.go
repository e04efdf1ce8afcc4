// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/query"
	"github.com/jeranaias/ulm/internal/util"
)

const (
	maxSynopsisLines = 5
	maxSynopsisRunes = 500
)

// nameSeparator splits "tool - description" in a NAME section. Pages use a
// hyphen, a double hyphen, or an em dash.
var nameSeparator = regexp.MustCompile(`\s+(?:--?|\x{2014})\s+`)

// Page is the indexable summary of one manpage.
type Page struct {
	ToolName    string
	Section     string
	Description string
	Synopsis    string
	SourcePath  string
}

// Extract reads the manpage at path and returns its summary.
func Extract(path string) (Page, error) {
	tool, section, ok := ParsePageName(path)
	if !ok {
		return Page{}, fmt.Errorf("not a manpage file name: %s", path)
	}

	text, err := query.ReadSource(path)
	if err != nil {
		return Page{}, fmt.Errorf("reading %s: %w", path, err)
	}

	page := Page{ToolName: tool, Section: section, SourcePath: path}
	sections := query.SplitSections(text)
	if body, ok := query.Find(sections, "NAME"); ok {
		page.Description = parseNameLine(body)
	}
	if body, ok := query.Find(sections, "SYNOPSIS"); ok {
		page.Synopsis = firstLines(body, maxSynopsisLines, maxSynopsisRunes)
	}
	return page, nil
}

// parseNameLine returns the description half of a NAME section.
func parseNameLine(body string) string {
	line := strings.Join(strings.Fields(body), " ")
	if loc := nameSeparator.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[loc[1]:])
	}
	return line
}

func firstLines(body string, maxLines, maxRunes int) string {
	var lines []string
	for _, l := range strings.Split(body, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == maxLines {
			break
		}
	}
	return util.TruncateRunes(strings.Join(lines, "\n"), maxRunes)
}

// EmbeddingText is the string embedded for the page.
func (p Page) EmbeddingText() string {
	var sb strings.Builder
	sb.WriteString(p.ToolName)
	if p.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(p.Description)
	}
	if p.Synopsis != "" {
		sb.WriteByte('\n')
		sb.WriteString(p.Synopsis)
	}
	return sb.String()
}

// Document pairs the page with its embedding.
func (p Page) Document(vec []float32) index.Document {
	return index.Document{
		ToolName:    p.ToolName,
		Section:     p.Section,
		Description: p.Description,
		SourcePath:  p.SourcePath,
		Text:        p.EmbeddingText(),
		Vector:      vec,
	}
}
