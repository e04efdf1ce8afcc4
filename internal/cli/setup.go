// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run setup and index maintenance.
//
// Command: setup [--model NAME] [--skip-pull]
//   Starts Ollama if needed, recommends a generation model from system RAM, pulls
//   missing models and builds the index.
//
// Command: update [--rebuild] [--watch]
//   Re-indexes new and changed manpages and drops removed ones. --watch
//   keeps running and re-indexes pages as they change on disk.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/llm"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ollama"
	"github.com/jeranaias/ulm/internal/setup"
)

func (a *App) setupCommand() *cobra.Command {
	var (
		llmModel string
		skipPull bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Pull models and build the manpage index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSetup(cmd.Context(), llmModel, skipPull)
		},
	}
	cmd.Flags().StringVar(&llmModel, "model", "", "generation model to use (default: recommended for this machine)")
	cmd.Flags().BoolVar(&skipPull, "skip-pull", false, "do not download missing models")
	return cmd
}

func (a *App) updateCommand() *cobra.Command {
	var rebuild, watch bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-index new, changed and removed manpages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.runIndex(ctx, rebuild); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx)
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "drop the index and embed every page again")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-index pages as they change")
	return cmd
}

// =============================================================================
// SETUP
// =============================================================================

func (a *App) runSetup(ctx context.Context, llmModel string, skipPull bool) error {
	out := a.Stdout
	fmt.Fprintln(out, TitleStyle.Render("ulm setup"))

	if a.cfg.Backend.Provider == llm.ProviderOpenAI {
		fmt.Fprintf(out, "%s Using an OpenAI-compatible backend; skipping model downloads\n", RenderStatus("ok"))
		if llmModel != "" {
			if err := a.saveLLMModel(llmModel); err != nil {
				return err
			}
		}
		_, err := a.runIndex(ctx, a.cfg.NeedsIndexRebuild())
		return err
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:    a.cfg.Ollama.URL,
		MaxRetries: 1,
		Logger:     a.log,
	})
	if err := client.StartServer(ctx, out); err != nil {
		return model.Connectivity("Ollama is not running at "+a.cfg.Ollama.URL, err)
	}
	version, err := client.Version(ctx)
	if err != nil {
		return model.Connectivity("Ollama is not responding at "+a.cfg.Ollama.URL, err)
	}

	mm, err := setup.NewModelManager(a.cfg.Ollama.URL, a.log)
	if err != nil {
		return err
	}
	installed, err := mm.Installed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Ollama %s is running at %s (%d models installed)\n",
		RenderStatus("ok"), version, a.cfg.Ollama.URL, len(installed))

	if llmModel == "" {
		ram := setup.SystemRAMGB()
		recommended := setup.RecommendModel(ram)
		if ram > 0 {
			fmt.Fprintf(out, "%s %.1f GB RAM detected, recommended model: %s\n", RenderStatus("ok"), ram, recommended)
		}
		if a.configExists() {
			llmModel = a.cfg.Models.LLMModel
		} else {
			llmModel = recommended
		}
	}
	if llmModel != a.cfg.Models.LLMModel {
		if err := a.saveLLMModel(llmModel); err != nil {
			return err
		}
	}

	missing, err := mm.Missing(ctx, a.cfg.Models.EmbeddingModel, llmModel)
	if err != nil {
		return err
	}
	for _, name := range missing {
		if skipPull {
			return model.Configuration(fmt.Sprintf("model %q is not installed", name), nil)
		}
		if err := a.pull(ctx, mm, name); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%s Models ready: %s, %s\n", RenderStatus("ok"), a.cfg.Models.EmbeddingModel, llmModel)

	_, err = a.runIndex(ctx, a.cfg.NeedsIndexRebuild())
	return err
}

func (a *App) pull(ctx context.Context, mm *setup.ModelManager, name string) error {
	fmt.Fprintf(a.Stdout, "Pulling %s...\n", name)
	last := -1
	err := mm.Pull(ctx, name, func(p setup.PullProgress) {
		pct := int(p.Percent)
		if p.Total == 0 || pct == last {
			return
		}
		last = pct
		fmt.Fprintf(a.Stderr, "\r  %-12s %3d%%", p.Status, pct)
	})
	if last >= 0 {
		fmt.Fprintln(a.Stderr)
	}
	return err
}

// saveLLMModel records the generation model in the config file.
func (a *App) saveLLMModel(name string) error {
	raw, path, err := a.loadRawConfig()
	if err != nil {
		return err
	}
	raw.Models.LLMModel = name
	if err := saveConfig(raw, path); err != nil {
		return err
	}
	a.cfg.Models.LLMModel = name
	return nil
}

func (a *App) configExists() bool {
	path, err := a.configFile()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// =============================================================================
// INDEXING
// =============================================================================

// runIndex scans the man directories and brings the index up to date.
func (a *App) runIndex(ctx context.Context, rebuild bool) (setup.Stats, error) {
	if !rebuild && a.cfg.NeedsIndexRebuild() {
		return setup.Stats{}, model.Configuration(fmt.Sprintf(
			"embedding model changed from %s to %s; the index dimension no longer matches",
			a.cfg.Index.LastEmbeddingModel, a.cfg.Models.EmbeddingModel), nil)
	}

	scanner := setup.NewScanner(a.log)
	paths, err := scanner.Scan()
	if err != nil {
		return setup.Stats{}, err
	}
	if len(paths) == 0 {
		return setup.Stats{}, model.Configuration("no manpages found (is man-db installed?)", nil)
	}

	return a.indexPaths(ctx, paths, rebuild)
}

func (a *App) indexPaths(ctx context.Context, paths []string, rebuild bool) (setup.Stats, error) {
	store, err := a.openIndex(true)
	if err != nil {
		return setup.Stats{}, err
	}
	defer store.Close()

	meta, err := index.LoadMetadata(index.MetadataPath(store.Path()))
	if err != nil {
		return setup.Stats{}, model.Configuration("cannot read index metadata", err)
	}
	meta.EmbeddingModel = a.cfg.Models.EmbeddingModel

	backend, err := a.NewBackend(a.cfg, a.log)
	if err != nil {
		return setup.Stats{}, err
	}

	ix := setup.NewIndexer(backend, store, meta, setup.IndexerOptions{
		Workers:           a.cfg.Index.Workers,
		RequestsPerSecond: a.cfg.Index.RequestsPerSecond,
		Rebuild:           rebuild,
		Progress:          progressPrinter(a.Stderr),
	}, a.log)

	fmt.Fprintf(a.Stdout, "Indexing %d manpages...\n", len(paths))
	stats, err := ix.Run(ctx, paths)
	if err != nil {
		return stats, err
	}

	if stats.Dimension > 0 && (stats.Dimension != a.cfg.Index.EmbeddingDimension ||
		a.cfg.Index.LastEmbeddingModel != a.cfg.Models.EmbeddingModel) {
		if err := a.saveIndexMetadata(stats.Dimension); err != nil {
			return stats, err
		}
	}

	fmt.Fprintf(a.Stdout, "%s %d indexed, %d unchanged, %d removed, %d skipped in %s\n",
		RenderStatus("ok"), stats.Indexed, stats.Unchanged, stats.Removed, stats.Failed,
		stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}

// saveIndexMetadata records the index dimension and embedding model in the
// config file.
func (a *App) saveIndexMetadata(dim int) error {
	raw, path, err := a.loadRawConfig()
	if err != nil {
		return err
	}
	raw.Index.EmbeddingDimension = dim
	raw.Index.LastEmbeddingModel = a.cfg.Models.EmbeddingModel
	if err := saveConfig(raw, path); err != nil {
		return err
	}
	a.cfg.UpdateIndexMetadata(dim)
	return nil
}

// progressPrinter reports indexing progress on one rewritten line.
func progressPrinter(w io.Writer) func(done, total int) {
	if w != os.Stderr || !IsStderrTTY() {
		return nil
	}
	return func(done, total int) {
		if done%25 == 0 || done == total {
			fmt.Fprintf(w, "\r  %d/%d", done, total)
			if done == total {
				fmt.Fprintln(w)
			}
		}
	}
}

// =============================================================================
// WATCH
// =============================================================================

func (a *App) watch(ctx context.Context) error {
	scanner := setup.NewScanner(a.log)
	w, err := setup.NewWatcher(scanner, setup.DefaultWatchDebounce, func(ctx context.Context, changed []string) error {
		paths, err := scanner.Scan()
		if err != nil {
			return err
		}
		a.log.Info("re-indexing after change", zap.Strings("changed", changed))
		_, err = a.indexPaths(ctx, paths, false)
		return err
	}, a.log)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintf(a.Stdout, "Watching %d man directories (Ctrl-C to stop)\n", len(w.Dirs()))
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
