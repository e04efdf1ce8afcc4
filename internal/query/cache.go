// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"container/list"
	"os"
	"sync"
	"time"
)

// =============================================================================
// DOC CACHE
// =============================================================================

// DocCache keeps rendered manpage text keyed by source file. An entry is
// dropped when the file's modification time moves past the cached one.
type DocCache struct {
	mu          sync.Mutex
	entries     map[string]*list.Element
	lru         *list.List // front = most recent
	maxEntries  int
	maxSize     int64
	currentSize int64

	hits   int
	misses int
}

type docEntry struct {
	path    string
	text    string
	modTime time.Time
}

// DocCacheStats reports cache effectiveness.
type DocCacheStats struct {
	Hits       int
	Misses     int
	EntryCount int
	TotalSize  int64
}

// NewDocCache creates a cache bounded by entry count and total bytes.
func NewDocCache(maxEntries int, maxSize int64) *DocCache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	if maxSize <= 0 {
		maxSize = 8 * 1024 * 1024
	}
	return &DocCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		maxSize:    maxSize,
	}
}

// Get returns the cached text for path if the file is unchanged.
func (c *DocCache) Get(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[path]
	if !ok {
		c.misses++
		return "", false
	}
	entry := el.Value.(*docEntry)

	info, err := os.Stat(path)
	if err != nil || info.ModTime().After(entry.modTime) {
		c.removeLocked(el)
		c.misses++
		return "", false
	}

	c.lru.MoveToFront(el)
	c.hits++
	return entry.text, true
}

// Put stores text for path. Oversized texts are not cached.
func (c *DocCache) Put(path, text string, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(text))
	if size > c.maxSize/4 {
		return
	}

	if el, ok := c.entries[path]; ok {
		c.removeLocked(el)
	}
	for c.lru.Len() > 0 && (c.currentSize+size > c.maxSize || c.lru.Len() >= c.maxEntries) {
		c.removeLocked(c.lru.Back())
	}

	c.entries[path] = c.lru.PushFront(&docEntry{path: path, text: text, modTime: modTime})
	c.currentSize += size
}

// Invalidate forgets path.
func (c *DocCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[path]; ok {
		c.removeLocked(el)
	}
}

// Stats returns a snapshot of cache counters.
func (c *DocCache) Stats() DocCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return DocCacheStats{
		Hits:       c.hits,
		Misses:     c.misses,
		EntryCount: c.lru.Len(),
		TotalSize:  c.currentSize,
	}
}

func (c *DocCache) removeLocked(el *list.Element) {
	entry := c.lru.Remove(el).(*docEntry)
	delete(c.entries, entry.path)
	c.currentSize -= int64(len(entry.text))
}
