// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultManDirs are scanned before any MANPATH entries.
var DefaultManDirs = []string{
	"/usr/share/man",
	"/usr/local/share/man",
	"/opt/homebrew/share/man",
}

// DefaultSections holds the user and administration command sections.
var DefaultSections = []string{"man1", "man8"}

// Scanner finds manpage files.
type Scanner struct {
	Dirs     []string
	Sections []string
	Log      *zap.Logger
}

// NewScanner returns a scanner over DefaultManDirs plus the entries of the
// MANPATH environment variable.
func NewScanner(log *zap.Logger) *Scanner {
	return &Scanner{
		Dirs:     ManDirs(os.Getenv("MANPATH")),
		Sections: DefaultSections,
		Log:      log,
	}
}

// ManDirs merges DefaultManDirs with a colon-separated MANPATH value,
// dropping empty and duplicate entries.
func ManDirs(manpath string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		if d == "" {
			return
		}
		d = filepath.Clean(d)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, d := range DefaultManDirs {
		add(d)
	}
	for _, d := range strings.Split(manpath, string(os.PathListSeparator)) {
		add(d)
	}
	return dirs
}

// Scan returns manpage paths sorted by name. When the same page exists in
// several directories the first directory wins. Missing directories are
// skipped.
func (s *Scanner) Scan() ([]string, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	sections := s.Sections
	if len(sections) == 0 {
		sections = DefaultSections
	}

	seen := make(map[string]bool)
	var pages []string
	for _, dir := range s.Dirs {
		for _, section := range sections {
			sectionDir := filepath.Join(dir, section)
			entries, err := os.ReadDir(sectionDir)
			if err != nil {
				if !os.IsNotExist(err) {
					log.Warn("failed to scan man section", zap.String("path", sectionDir), zap.Error(err))
				}
				continue
			}

			count := 0
			for _, e := range entries {
				if e.IsDir() || !IsManpageFile(e.Name()) {
					continue
				}
				key := strings.TrimSuffix(e.Name(), ".gz")
				if seen[key] {
					continue
				}
				seen[key] = true
				pages = append(pages, filepath.Join(sectionDir, e.Name()))
				count++
			}
			log.Debug("scanned man section", zap.String("path", sectionDir), zap.Int("count", count))
		}
	}

	sort.Slice(pages, func(i, j int) bool {
		return filepath.Base(pages[i]) < filepath.Base(pages[j])
	})
	log.Info("manpages found", zap.Int("count", len(pages)))
	return pages, nil
}

// IsManpageFile reports whether name is a section 1 or 8 page, optionally
// gzipped. Suffixed sections such as ".1ssl" or ".1p" are not matched.
func IsManpageFile(name string) bool {
	for _, suffix := range []string{".1", ".8", ".1.gz", ".8.gz"} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return true
		}
	}
	return false
}

// ParsePageName splits a manpage file name into tool and section:
// "tar.1.gz" gives ("tar", "1").
func ParsePageName(path string) (tool, section string, ok bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".gz")
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return "", "", false
	}
	return name[:dot], name[dot+1:], true
}
