// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/llm"
	"github.com/jeranaias/ulm/internal/logging"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/telemetry"
)

// VectorStore is the part of index.Store the retriever needs.
type VectorStore interface {
	Dimension(ctx context.Context) (int, error)
	Search(ctx context.Context, vec []float32, limit int) ([]model.SearchMatch, error)
}

// Retriever finds manpages semantically close to a query.
type Retriever struct {
	embedder llm.Embedder
	store    VectorStore
	log      *zap.Logger
}

// NewRetriever creates a Retriever. log may be nil.
func NewRetriever(embedder llm.Embedder, store VectorStore, log *zap.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		log:      logging.OrNop(log),
	}
}

// Search embeds query and returns up to limit matches by descending score.
//
// An empty index yields an empty slice. An embedding failure is returned
// as a Connectivity error and the store is not queried. A query vector
// whose length differs from the index dimension is a Configuration error.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]model.SearchMatch, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "retriever.search")
	defer span.End()

	if limit < 1 {
		limit = 1
	}
	query = norm.NFC.String(strings.TrimSpace(query))
	span.SetAttributes(attribute.Int("limit", limit))

	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if model.KindOf(err) == model.KindUnknown {
			err = model.Connectivity("failed to embed query", err)
		}
		return nil, telemetry.Fail(span, err)
	}
	r.log.Debug("query embedded",
		zap.Int("dimension", len(vec)),
		zap.Duration("elapsed", time.Since(start)))

	dim, err := r.store.Dimension(ctx)
	if err != nil {
		return nil, telemetry.Fail(span, fmt.Errorf("reading index dimension: %w", err))
	}
	if dim == 0 {
		r.log.Debug("index is empty")
		return []model.SearchMatch{}, nil
	}
	if dim != len(vec) {
		return nil, telemetry.Fail(span, dimensionError(dim, len(vec)))
	}

	matches, err := r.store.Search(ctx, vec, limit)
	if err != nil {
		var de *index.DimensionError
		if errors.As(err, &de) {
			return nil, telemetry.Fail(span, dimensionError(de.Stored, de.Got))
		}
		return nil, telemetry.Fail(span, fmt.Errorf("searching index: %w", err))
	}

	for i, m := range matches {
		r.log.Debug("search result",
			zap.Int("rank", i+1),
			zap.String("tool", m.String()),
			zap.Float64("score", m.Score))
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return matches, nil
}

func dimensionError(stored, got int) error {
	return model.Configuration(
		fmt.Sprintf("index was built with %d-dimension embeddings but the embedding model returns %d", stored, got),
		index.ErrDimensionMismatch)
}
