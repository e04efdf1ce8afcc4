// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/jeranaias/ulm/internal/util"
)

// MetadataVersion is bumped when the file layout changes.
const MetadataVersion = 1

// FileState records what was indexed for one manpage file.
type FileState struct {
	Hash      string    `json:"hash"`
	ModTime   time.Time `json:"mod_time"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Metadata tracks indexed manpage files by content hash so incremental
// updates can skip unchanged pages.
type Metadata struct {
	Version        int                  `json:"version"`
	EmbeddingModel string               `json:"embedding_model"`
	Files          map[string]FileState `json:"files"`

	path string
}

// MetadataPath returns the metadata file that accompanies the index
// database at indexPath.
func MetadataPath(indexPath string) string {
	return strings.TrimSuffix(indexPath, filepath.Ext(indexPath)) + "_meta.json"
}

// LoadMetadata reads the metadata file at path. A missing file yields an
// empty Metadata bound to path.
func LoadMetadata(path string) (*Metadata, error) {
	m := &Metadata{Version: MetadataVersion, Files: make(map[string]FileState), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse index metadata: %w", err)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileState)
	}
	m.path = path
	return m, nil
}

// Save writes the metadata atomically.
func (m *Metadata) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFileWithDir(m.path, data, 0600, 0700)
}

// FilterChanged returns the paths whose content hash differs from the
// recorded one, including paths never seen. Hashes are returned for the
// caller to pass to Update once a path is indexed.
func (m *Metadata) FilterChanged(paths []string) (changed []string, hashes map[string]string) {
	hashes = make(map[string]string, len(paths))
	for _, p := range paths {
		h, err := HashFile(p)
		if err != nil {
			// Unreadable now; let the indexer report it.
			changed = append(changed, p)
			continue
		}
		hashes[p] = h
		if st, ok := m.Files[p]; !ok || st.Hash != h {
			changed = append(changed, p)
		}
	}
	return changed, hashes
}

// Update records path as indexed with hash.
func (m *Metadata) Update(path, hash string) {
	st := FileState{Hash: hash, IndexedAt: time.Now()}
	if info, err := os.Stat(path); err == nil {
		st.ModTime = info.ModTime()
	}
	m.Files[path] = st
}

// RemoveDeleted drops entries not in present and returns them sorted.
func (m *Metadata) RemoveDeleted(present []string) []string {
	keep := make(map[string]struct{}, len(present))
	for _, p := range present {
		keep[p] = struct{}{}
	}
	var removed []string
	for p := range m.Files {
		if _, ok := keep[p]; !ok {
			removed = append(removed, p)
			delete(m.Files, p)
		}
	}
	sort.Strings(removed)
	return removed
}

// Reset forgets every file.
func (m *Metadata) Reset() {
	m.Files = make(map[string]FileState)
}

// HashFile returns the hex BLAKE2b-256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
