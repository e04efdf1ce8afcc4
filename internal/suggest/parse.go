// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package suggest

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/jeranaias/ulm/internal/model"
)

type rawResponse struct {
	Suggestions []rawSuggestion `json:"suggestions"`
}

type rawSuggestion struct {
	Command     string          `json:"command"`
	Title       string          `json:"title"`
	Explanation string          `json:"explanation"`
	RiskLevel   json.RawMessage `json:"risk_level"`
}

var errNoSuggestions = errors.New("response contained no usable suggestions")

// Parse validates raw generator output.
//
// Entries with an empty or whitespace-only command are dropped. A missing
// risk_level means Safe; an unrecognised one means Moderate. Fields are
// otherwise copied verbatim; a missing title or explanation is left empty.
// Parse fails with KindMalformedResponse when raw is not exactly one JSON
// object of the expected shape or when no entry survives.
func Parse(raw string) ([]model.CommandSuggestion, error) {
	body := stripCodeFence(raw)

	var resp rawResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, model.MalformedResponse(raw, err)
	}

	out := make([]model.CommandSuggestion, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		if strings.TrimSpace(s.Command) == "" {
			continue
		}
		out = append(out, model.CommandSuggestion{
			Command:     s.Command,
			Title:       s.Title,
			Explanation: s.Explanation,
			RiskLevel:   parseRisk(s.RiskLevel),
		})
	}

	if len(out) == 0 {
		return nil, model.MalformedResponse(raw, errNoSuggestions)
	}
	return out, nil
}

func parseRisk(raw json.RawMessage) model.RiskLevel {
	if len(raw) == 0 || string(raw) == "null" {
		return model.RiskSafe
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.RiskModerate
	}
	if strings.TrimSpace(s) == "" {
		return model.RiskSafe
	}
	if level, ok := model.ParseRiskLevel(s); ok {
		return level
	}
	return model.RiskModerate
}

// stripCodeFence removes a surrounding ``` fence some OpenAI-compatible
// servers add even in JSON mode.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return t
}
