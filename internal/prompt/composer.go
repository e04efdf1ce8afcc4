// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles the generation prompt.
//
// Sections always appear in this order: instructions, reference
// documentation, directory context, user query. Only the reference text
// is ever shortened to respect the token budget.
package prompt

import (
	"strings"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/util"
)

// TruncationMarker follows reference text that was cut.
const TruncationMarker = "[Content truncated for length]"

// DefaultTokenBudget is the prompt size ceiling in estimated tokens.
const DefaultTokenBudget = 12000

// charsPerToken is the estimate used everywhere a token count is needed.
const charsPerToken = 4

// SystemInstructions tells the model what to return.
const SystemInstructions = `You are an expert on the Unix command line. Suggest shell commands that accomplish the user's request, using the reference documentation and the working directory context below.

Respond ONLY with valid JSON in exactly this format:
{
  "suggestions": [
    {
      "command": "the exact command to run",
      "title": "short title (3-5 words)",
      "explanation": "what the command does and why it solves the request",
      "risk_level": "safe|moderate|destructive"
    }
  ]
}

Risk levels:
- "safe": read-only, no side effects
- "moderate": changes files or state but can be undone
- "destructive": irreversible (deletes data, overwrites, force pushes)

Give 1 to 3 suggestions ordered by relevance. Every suggestion must explain why it works.`

// EstimateTokens approximates the token count of s as ceil(runes/4).
func EstimateTokens(s string) int {
	n := util.RuneLen(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// Composer builds prompts within a token budget.
type Composer struct {
	tokenBudget int
}

// NewComposer returns a Composer. A non-positive budget selects
// DefaultTokenBudget.
func NewComposer(tokenBudget int) *Composer {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return &Composer{tokenBudget: tokenBudget}
}

// Budget returns the token budget in use.
func (c *Composer) Budget() int {
	return c.tokenBudget
}

// Compose returns the full prompt for query. The result is a pure
// function of its inputs.
//
// When the prompt would exceed the budget, reference is cut at a rune
// boundary and followed by TruncationMarker. Instructions, context and
// query are never shortened, so a prompt whose fixed parts alone exceed
// the budget is returned with the reference emptied.
func (c *Composer) Compose(query, reference string, ctx model.DirectoryContext) string {
	summary := ctx.FormatSummary()
	full := render(query, reference, summary)

	maxChars := c.tokenBudget * charsPerToken
	total := util.RuneLen(full)
	if total <= maxChars {
		return full
	}

	overhead := total - util.RuneLen(reference)
	suffix := "\n\n" + TruncationMarker
	room := maxChars - overhead - util.RuneLen(suffix)
	if room < 0 {
		room = 0
	}

	cut := strings.TrimRight(string([]rune(reference)[:min(room, util.RuneLen(reference))]), " \t\n")
	if cut == "" {
		return render(query, TruncationMarker, summary)
	}
	return render(query, cut+suffix, summary)
}

func render(query, reference, summary string) string {
	var sb strings.Builder
	sb.Grow(len(SystemInstructions) + len(reference) + len(summary) + len(query) + 128)

	sb.WriteString(SystemInstructions)
	sb.WriteString("\n\n---\n\n## Reference Documentation\n\n")
	sb.WriteString(reference)
	sb.WriteString("\n\n---\n\n## Context\n\n")
	sb.WriteString(summary)
	sb.WriteString("\n\n---\n\n## User Query\n\n")
	sb.WriteString(query)
	sb.WriteString("\n\n---\n\nRespond with JSON only:")
	return sb.String()
}
