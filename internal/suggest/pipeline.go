// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/ulm/internal/llm"
	"github.com/jeranaias/ulm/internal/logging"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/prompt"
	"github.com/jeranaias/ulm/internal/query"
	"github.com/jeranaias/ulm/internal/telemetry"
)

// Searcher finds candidate tools for a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.SearchMatch, error)
}

// DocSource loads reference documentation for a match.
type DocSource interface {
	Load(ctx context.Context, m model.SearchMatch) (string, error)
}

// Options tunes a Pipeline. Zero fields take the defaults below.
type Options struct {
	// SimilarityThreshold is the minimum score a match needs (default 0.7).
	SimilarityThreshold float64

	// SearchLimit is how many matches to retrieve (default 3).
	SearchLimit int

	// ReferenceCharBudget caps the documentation text (default 8000).
	ReferenceCharBudget int

	// TokenBudget caps the whole prompt (default 12000).
	TokenBudget int

	// GenerateTimeout bounds the generation call. Zero leaves it to the
	// backend client.
	GenerateTimeout time.Duration
}

// DefaultOptions returns the stock pipeline settings.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 0.7,
		SearchLimit:         3,
		ReferenceCharBudget: 8000,
		TokenBudget:         prompt.DefaultTokenBudget,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = d.SimilarityThreshold
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = d.SearchLimit
	}
	if o.ReferenceCharBudget <= 0 {
		o.ReferenceCharBudget = d.ReferenceCharBudget
	}
	if o.TokenBudget <= 0 {
		o.TokenBudget = d.TokenBudget
	}
	return o
}

// Pipeline produces suggestions for one query at a time. It performs no
// writes.
type Pipeline struct {
	searcher  Searcher
	docs      DocSource
	generator llm.Generator
	composer  *prompt.Composer
	probe     func() model.DirectoryContext
	opts      Options
	log       *zap.Logger
}

// New creates a Pipeline. log may be nil.
func New(searcher Searcher, docs DocSource, generator llm.Generator, opts Options, log *zap.Logger) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		searcher:  searcher,
		docs:      docs,
		generator: generator,
		composer:  prompt.NewComposer(opts.TokenBudget),
		probe:     query.ScanCurrentDirectory,
		opts:      opts,
		log:       logging.OrNop(log),
	}
}

// WithProbe replaces the working-directory scan.
func (p *Pipeline) WithProbe(probe func() model.DirectoryContext) *Pipeline {
	p.probe = probe
	return p
}

// Run executes the pipeline for q.
func (p *Pipeline) Run(ctx context.Context, q string) ([]model.CommandSuggestion, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run")
	defer span.End()
	start := time.Now()

	matches, err := p.searcher.Search(ctx, q, p.opts.SearchLimit)
	if err != nil {
		return nil, telemetry.Fail(span, err)
	}

	candidates := aboveThreshold(matches, p.opts.SimilarityThreshold)
	span.SetAttributes(
		attribute.Int("matches", len(matches)),
		attribute.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		best := 0.0
		if len(matches) > 0 {
			best = matches[0].Score
		}
		p.log.Debug("no match above threshold",
			zap.Float64("best_score", best),
			zap.Float64("threshold", p.opts.SimilarityThreshold))
		return nil, telemetry.Fail(span, model.NoMatchingTools(q))
	}

	reference, dirCtx := p.gather(ctx, candidates)
	promptText := p.composer.Compose(q, reference, dirCtx)
	p.log.Debug("prompt composed",
		zap.String("top_tool", candidates[0].String()),
		zap.Int("estimated_tokens", prompt.EstimateTokens(promptText)))

	raw, err := p.generate(ctx, promptText)
	if err != nil {
		return nil, telemetry.Fail(span, err)
	}

	suggestions, err := Parse(raw)
	if err != nil {
		p.log.Debug("malformed response", zap.String("raw", raw), zap.Error(err))
		return nil, telemetry.Fail(span, err)
	}

	span.SetAttributes(attribute.Int("suggestions", len(suggestions)))
	p.log.Debug("pipeline completed",
		zap.Int("suggestions", len(suggestions)),
		zap.Duration("elapsed", time.Since(start)))
	return suggestions, nil
}

// gather loads documentation and scans the working directory in parallel.
// Neither step can fail the pipeline: a missing manpage falls back to the
// indexed description.
func (p *Pipeline) gather(ctx context.Context, candidates []model.SearchMatch) (string, model.DirectoryContext) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.gather")
	defer span.End()

	var (
		doc    string
		dirCtx model.DirectoryContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := p.docs.Load(gctx, candidates[0])
		if err != nil {
			p.log.Warn("documentation unavailable", zap.String("tool", candidates[0].String()), zap.Error(err))
			return nil
		}
		doc = query.TruncateReference(text, p.opts.ReferenceCharBudget)
		return nil
	})
	g.Go(func() error {
		dirCtx = p.probe()
		return nil
	})
	_ = g.Wait()

	return buildReference(candidates, doc), dirCtx
}

func (p *Pipeline) generate(ctx context.Context, promptText string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.generate")
	defer span.End()

	if p.opts.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.GenerateTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.generator.Generate(ctx, promptText)
	if err != nil {
		if model.KindOf(err) == model.KindUnknown {
			msg := "generation failed"
			if errors.Is(err, context.DeadlineExceeded) {
				msg = "generation timed out"
			}
			err = model.Connectivity(msg, err)
		}
		return "", telemetry.Fail(span, err)
	}
	p.log.Debug("generation completed", zap.Duration("elapsed", time.Since(start)))
	return raw, nil
}

func aboveThreshold(matches []model.SearchMatch, threshold float64) []model.SearchMatch {
	var out []model.SearchMatch
	for _, m := range matches {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	return out
}

// buildReference lists the candidate tools, then the top match's manual.
func buildReference(candidates []model.SearchMatch, doc string) string {
	var sb strings.Builder
	sb.WriteString("Relevant tools:\n")
	for _, m := range candidates {
		fmt.Fprintf(&sb, "- %s: %s\n", m, m.Description)
	}
	if doc != "" {
		sb.WriteString("\nManual for ")
		sb.WriteString(candidates[0].String())
		sb.WriteString(":\n\n")
		sb.WriteString(doc)
	}
	return sb.String()
}
