// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/action"
	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/query"
	"github.com/jeranaias/ulm/internal/suggest"
	"github.com/jeranaias/ulm/internal/ui/selector"
	"github.com/jeranaias/ulm/internal/ui/styles"
	"github.com/jeranaias/ulm/internal/ui/terminal"
)

// runQuery suggests commands for q and performs the action the user picks.
func (a *App) runQuery(ctx context.Context, q string, printOnly bool) error {
	cfg := a.cfg
	if cfg.NeedsIndexRebuild() {
		return model.Configuration(fmt.Sprintf(
			"embedding model changed from %s to %s and the index dimension no longer matches",
			cfg.Index.LastEmbeddingModel, cfg.Models.EmbeddingModel), nil)
	}

	store, err := a.openIndex(false)
	if err != nil {
		return err
	}
	defer store.Close()

	backend, err := a.NewBackend(cfg, a.log)
	if err != nil {
		return err
	}

	docs := a.Docs
	if docs == nil {
		docs = query.NewDocLoader(a.log)
	}
	pipeline := suggest.New(query.NewRetriever(backend, store, a.log), docs, backend, suggest.Options{
		SimilarityThreshold: cfg.Query.SimilarityThreshold,
		SearchLimit:         cfg.Query.SearchLimit,
		ReferenceCharBudget: cfg.Query.ReferenceCharBudget,
		TokenBudget:         cfg.Query.TokenBudget,
		GenerateTimeout:     cfg.GenerateTimeout(),
	}, a.log)

	suggestions, err := pipeline.Run(ctx, q)
	if err != nil {
		return err
	}

	if printOnly || !a.Interactive() {
		return a.printSuggestions(q, suggestions)
	}

	guard := terminal.NewGuard(int(os.Stdin.Fd()), a.log)
	var act model.UserAction
	err = guard.Protect(func() error {
		var runErr error
		act, runErr = selector.Run(ctx, suggestions, action.SystemClipboard{}, selector.Options{
			Handoff:   cfg.UI.Handoff,
			StatusTTL: cfg.StatusTTL(),
		}, selector.RunOptions{Theme: styles.NewTheme()})
		return runErr
	})
	if err != nil {
		return err
	}
	a.log.Info("action selected", zap.Stringer("action", act.Kind))

	executor := action.NewExecutor(a.log)
	executor.Terminal = guard
	code, err := executor.Run(ctx, act)
	a.exitCode = code
	return err
}

// openIndex opens the configured index. Unless create is set, a missing
// index is a Configuration error.
func (a *App) openIndex(create bool) (*index.Store, error) {
	path, err := a.cfg.IndexPath()
	if err != nil {
		return nil, err
	}
	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, model.Configuration("index not found at "+path, nil)
		}
	}
	store, err := index.Open(path)
	if err != nil {
		return nil, model.Configuration("cannot open index "+path, err)
	}
	return store, nil
}

// =============================================================================
// NON-INTERACTIVE OUTPUT
// =============================================================================

// printSuggestions writes the suggestions as Markdown, rendered with
// glamour when stdout is a terminal.
func (a *App) printSuggestions(q string, suggestions []model.CommandSuggestion) error {
	md := SuggestionsMarkdown(q, suggestions)
	if !IsStdoutTTY() {
		_, err := fmt.Fprint(a.Stdout, md)
		return err
	}
	_, err := fmt.Fprint(a.Stdout, renderMarkdown(md, GetTerminalWidth()))
	return err
}

// SuggestionsMarkdown formats suggestions as a Markdown document.
func SuggestionsMarkdown(q string, suggestions []model.CommandSuggestion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Suggestions for %q\n", q)
	for i, s := range suggestions {
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("Suggestion %d", i+1)
		}
		fmt.Fprintf(&sb, "\n## %d. %s\n\n", i+1, title)
		fmt.Fprintf(&sb, "```sh\n%s\n```\n", s.Command)
		if s.Explanation != "" {
			fmt.Fprintf(&sb, "\n%s\n", s.Explanation)
		}
		if s.RiskLevel != model.RiskSafe {
			fmt.Fprintf(&sb, "\n**Risk:** %s\n", s.RiskLevel)
		}
	}
	return sb.String()
}

// renderMarkdown renders md for the terminal, returning md unchanged if
// the renderer cannot be built.
func renderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
