// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultWatchDebounce is how long a page must stay quiet before it is
// reindexed. Package managers touch many files in quick succession.
const DefaultWatchDebounce = 2 * time.Second

// ChangeFunc is called with the manpage paths that changed since the last
// call. Removed pages are included; the callback decides what to do.
type ChangeFunc func(ctx context.Context, paths []string) error

// Watcher reports manpage changes in the man section directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange ChangeFunc
	log      *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event
	dirs    []string
}

// NewWatcher watches every existing section directory the scanner covers.
func NewWatcher(s *Scanner, debounce time.Duration, onChange ChangeFunc, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}

	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		onChange: onChange,
		log:      log,
		pending:  make(map[string]time.Time),
	}

	sections := s.Sections
	if len(sections) == 0 {
		sections = DefaultSections
	}
	for _, dir := range s.Dirs {
		for _, section := range sections {
			path := filepath.Join(dir, section)
			if info, err := os.Stat(path); err != nil || !info.IsDir() {
				continue
			}
			if err := fw.Add(path); err != nil {
				log.Warn("cannot watch man section", zap.String("path", path), zap.Error(err))
				continue
			}
			w.dirs = append(w.dirs, path)
		}
	}
	return w, nil
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}

// Run processes events until ctx is cancelled or the watcher is closed.
// A callback error is logged and the affected paths are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case now := <-ticker.C:
			if ready := w.takeReady(now); len(ready) > 0 {
				w.log.Info("manpages changed", zap.Int("count", len(ready)))
				if err := w.onChange(ctx, ready); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					w.log.Error("reindex failed", zap.Error(err))
				}
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !IsManpageFile(filepath.Base(event.Name)) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// takeReady removes and returns paths that have been quiet for the debounce
// interval, sorted.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
