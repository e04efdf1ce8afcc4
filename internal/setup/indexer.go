// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/llm"
	"github.com/jeranaias/ulm/internal/model"
)

const (
	DefaultWorkers           = 4
	DefaultRequestsPerSecond = 20
	DefaultBatchSize         = 32
)

// DocumentStore is the part of index.Store the indexer writes to.
type DocumentStore interface {
	Upsert(ctx context.Context, docs ...index.Document) error
	Delete(ctx context.Context, sourcePaths ...string) (int, error)
	Reset(ctx context.Context) error
	Dimension(ctx context.Context) (int, error)
}

// Stats summarises an indexing run.
type Stats struct {
	Scanned   int
	Indexed   int
	Unchanged int
	Removed   int
	Failed    int
	Dimension int
	Elapsed   time.Duration
}

// IndexerOptions tunes an Indexer. Zero values take the defaults.
type IndexerOptions struct {
	Workers           int
	RequestsPerSecond int
	BatchSize         int

	// Rebuild drops the index and metadata before indexing every page.
	Rebuild bool

	// Progress is called after each page with the number of pages handled
	// so far and the number that needed work.
	Progress func(done, total int)
}

// Indexer embeds manpages into the vector store.
type Indexer struct {
	embedder llm.Embedder
	store    DocumentStore
	meta     *index.Metadata
	opts     IndexerOptions
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewIndexer creates an indexer. meta is updated and saved by Run.
func NewIndexer(embedder llm.Embedder, store DocumentStore, meta *index.Metadata, opts IndexerOptions, log *zap.Logger) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{
		embedder: embedder,
		store:    store,
		meta:     meta,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Workers),
		log:      log,
	}
}

// Run brings the index in line with paths: pages no longer present are
// deleted, new or modified pages are embedded and stored, and unchanged
// pages are skipped.
//
// A page that cannot be read or parsed is counted in Stats.Failed and
// skipped. A backend or store failure stops the run; pages stored before the
// failure stay recorded in the metadata so the next run resumes.
func (ix *Indexer) Run(ctx context.Context, paths []string) (Stats, error) {
	start := time.Now()
	stats := Stats{Scanned: len(paths)}

	if ix.opts.Rebuild {
		if err := ix.store.Reset(ctx); err != nil {
			return stats, err
		}
		ix.meta.Reset()
		ix.log.Info("index reset for rebuild")
	}

	if removed := ix.meta.RemoveDeleted(paths); len(removed) > 0 {
		n, err := ix.store.Delete(ctx, removed...)
		if err != nil {
			return stats, err
		}
		stats.Removed = n
		ix.log.Info("removed deleted manpages", zap.Int("count", n))
	}

	changed, hashes := ix.meta.FilterChanged(paths)
	stats.Unchanged = len(paths) - len(changed)

	var (
		mu    sync.Mutex
		batch []index.Document
		done  int
	)
	// flush must be called with mu held.
	flush := func(ctx context.Context) error {
		if len(batch) == 0 {
			return nil
		}
		if err := ix.store.Upsert(ctx, batch...); err != nil {
			return ix.storeError(err)
		}
		for _, d := range batch {
			ix.meta.Update(d.SourcePath, hashes[d.SourcePath])
		}
		stats.Indexed += len(batch)
		batch = batch[:0]
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)

	for _, path := range changed {
		path := path
		g.Go(func() error {
			doc, err := ix.indexOne(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			done++
			if ix.opts.Progress != nil {
				ix.opts.Progress(done, len(changed))
			}

			switch {
			case err == nil:
				batch = append(batch, doc)
				if len(batch) >= ix.opts.BatchSize {
					return flush(gctx)
				}
				return nil
			case errors.Is(err, errSkipPage):
				stats.Failed++
				return nil
			default:
				return err
			}
		})
	}

	runErr := g.Wait()

	mu.Lock()
	if runErr == nil {
		runErr = flush(ctx)
	}
	mu.Unlock()

	if err := ix.meta.Save(); err != nil && runErr == nil {
		runErr = fmt.Errorf("saving index metadata: %w", err)
	}

	if dim, err := ix.store.Dimension(ctx); err == nil {
		stats.Dimension = dim
	}
	stats.Elapsed = time.Since(start)

	ix.log.Info("indexing finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("indexed", stats.Indexed),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("removed", stats.Removed),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", stats.Elapsed))

	return stats, runErr
}

// errSkipPage marks a per-page failure that does not stop the run.
var errSkipPage = errors.New("page skipped")

func (ix *Indexer) indexOne(ctx context.Context, path string) (index.Document, error) {
	page, err := Extract(path)
	if err != nil {
		ix.log.Warn("skipping manpage", zap.String("path", path), zap.Error(err))
		return index.Document{}, errSkipPage
	}

	if err := ix.limiter.Wait(ctx); err != nil {
		return index.Document{}, err
	}

	vec, err := ix.embedder.Embed(ctx, page.EmbeddingText())
	if err != nil {
		if model.KindOf(err) == model.KindUnknown && ctx.Err() == nil {
			err = model.Connectivity("embedding failed while indexing", err)
		}
		return index.Document{}, fmt.Errorf("embedding %s: %w", page.ToolName, err)
	}
	if len(vec) == 0 {
		ix.log.Warn("empty embedding", zap.String("tool", page.ToolName))
		return index.Document{}, errSkipPage
	}
	return page.Document(vec), nil
}

func (ix *Indexer) storeError(err error) error {
	var dimErr *index.DimensionError
	if errors.As(err, &dimErr) {
		return model.Configuration(
			fmt.Sprintf("index holds %d-dimension vectors but the embedding model returns %d; run 'ulm update --rebuild'",
				dimErr.Stored, dimErr.Got),
			err)
	}
	return err
}
