// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const tarPage = `.\" generated
.TH TAR 1 "2024" "GNU"
.SH NAME
tar \- an archiving utility
.SH SYNOPSIS
.B tar
[\fIOPTION\fR...] [\fIFILE\fR]...
.SH DESCRIPTION
GNU tar saves many files together into a single archive.
`

func manPage(name, desc string) string {
	return ".TH X 1\n.SH NAME\n" + name + ` \- ` + desc + "\n.SH SYNOPSIS\n.B " + name + "\n[OPTION]\n"
}

func writePage(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	if filepath.Ext(path) == ".gz" {
		f, err := os.Create(path)
		require.NoError(t, err)
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		require.NoError(t, f.Close())
		return
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// =============================================================================
// SCANNER TESTS
// =============================================================================

func TestIsManpageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ls.1", true},
		{"ls.1.gz", true},
		{"iptables.8", true},
		{"mount.8.gz", true},
		{"openssl.1ssl", false},
		{"printf.3", false},
		{".1", false},
		{"README", false},
	}
	for _, tt := range tests {
		if got := IsManpageFile(tt.name); got != tt.want {
			t.Errorf("IsManpageFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParsePageName(t *testing.T) {
	tests := []struct {
		path          string
		tool, section string
		ok            bool
	}{
		{"/usr/share/man/man1/tar.1.gz", "tar", "1", true},
		{"man8/ip.8", "ip", "8", true},
		{"git-commit.1", "git-commit", "1", true},
		{"python3.11.1", "python3.11", "1", true},
		{"noext", "", "", false},
		{"trailing.", "", "", false},
	}
	for _, tt := range tests {
		tool, section, ok := ParsePageName(tt.path)
		if tool != tt.tool || section != tt.section || ok != tt.ok {
			t.Errorf("ParsePageName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.path, tool, section, ok, tt.tool, tt.section, tt.ok)
		}
	}
}

func TestManDirs(t *testing.T) {
	dirs := ManDirs("/custom/man::/usr/share/man/")
	assert.Equal(t, append(append([]string{}, DefaultManDirs...), "/custom/man"), dirs)
}

func TestScanner_FirstDirectoryWins(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writePage(t, filepath.Join(a, "man1", "tar.1.gz"), tarPage)
	writePage(t, filepath.Join(b, "man1", "tar.1"), tarPage)
	writePage(t, filepath.Join(b, "man8", "mount.8"), manPage("mount", "mount a filesystem"))
	writePage(t, filepath.Join(b, "man3", "printf.3"), manPage("printf", "formatted output"))
	writePage(t, filepath.Join(a, "man1", "awk.1"), manPage("awk", "pattern scanning"))

	s := &Scanner{Dirs: []string{a, b, filepath.Join(a, "missing")}}
	pages, err := s.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(a, "man1", "awk.1"),
		filepath.Join(b, "man8", "mount.8"),
		filepath.Join(a, "man1", "tar.1.gz"),
	}, pages)
}

// =============================================================================
// EXTRACT TESTS
// =============================================================================

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "man1", "tar.1.gz")
	writePage(t, path, tarPage)

	page, err := Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "tar", page.ToolName)
	assert.Equal(t, "1", page.Section)
	assert.Equal(t, "an archiving utility", page.Description)
	assert.Equal(t, "tar\n[OPTION...] [FILE]...", page.Synopsis)
	assert.Equal(t, "tar: an archiving utility\ntar\n[OPTION...] [FILE]...", page.EmbeddingText())

	doc := page.Document([]float32{1, 2})
	assert.Equal(t, path, doc.SourcePath)
	assert.Equal(t, page.EmbeddingText(), doc.Text)
}

func TestParseNameLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ls - list directory contents", "list directory contents"},
		{"grep, egrep -- print lines that match", "print lines that match"},
		{"sed — stream editor", "stream editor"},
		{"git-commit - Record changes", "Record changes"},
		{"noseparator", "noseparator"},
	}
	for _, tt := range tests {
		if got := parseNameLine(tt.in); got != tt.want {
			t.Errorf("parseNameLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtract_BadFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Extract(filepath.Join(dir, "man1", "missing.1"))
	assert.Error(t, err)

	broken := filepath.Join(dir, "man1", "broken.1.gz")
	writePage(t, broken, "")
	require.NoError(t, os.WriteFile(broken, []byte("not gzip"), 0o644))
	_, err = Extract(broken)
	assert.Error(t, err)
}

// =============================================================================
// INDEXER TESTS
// =============================================================================

type fakeEmbedder struct {
	dim   int
	calls atomic.Int32
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = float32(len(text)%7 + i + 1)
	}
	return vec, nil
}

type indexFixture struct {
	dir   string
	store *index.Store
	meta  *index.Metadata
	pages []string
}

func newIndexFixture(t *testing.T) *indexFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := index.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	meta, err := index.LoadMetadata(filepath.Join(dir, "index_meta.json"))
	require.NoError(t, err)

	f := &indexFixture{dir: dir, store: store, meta: meta}
	for _, p := range []struct{ file, name, desc string }{
		{"ls.1", "ls", "list directory contents"},
		{"find.1.gz", "find", "search for files"},
		{"du.1", "du", "estimate file space usage"},
	} {
		path := filepath.Join(dir, "man", "man1", p.file)
		writePage(t, path, manPage(p.name, p.desc))
		f.pages = append(f.pages, path)
	}
	return f
}

func TestIndexer_IncrementalRuns(t *testing.T) {
	f := newIndexFixture(t)
	emb := &fakeEmbedder{dim: 4}
	ctx := context.Background()

	var progress []int
	var mu sync.Mutex
	ix := NewIndexer(emb, f.store, f.meta, IndexerOptions{
		Workers:           2,
		RequestsPerSecond: 1000,
		BatchSize:         2,
		Progress: func(done, total int) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
		},
	}, nil)

	stats, err := ix.Run(ctx, f.pages)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 4, stats.Dimension)
	assert.Equal(t, []int{1, 2, 3}, progress)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Nothing changed: no embeddings.
	before := emb.calls.Load()
	stats, err = ix.Run(ctx, f.pages)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, 3, stats.Unchanged)
	assert.Equal(t, before, emb.calls.Load())

	// One modified, one removed.
	writePage(t, f.pages[0], manPage("ls", "list directory contents, sorted"))
	stats, err = ix.Run(ctx, f.pages[:2])
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Removed)

	count, err = f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Metadata was persisted.
	reloaded, err := index.LoadMetadata(filepath.Join(f.dir, "index_meta.json"))
	require.NoError(t, err)
	assert.Len(t, reloaded.Files, 2)
}

func TestIndexer_SkipsUnreadablePages(t *testing.T) {
	f := newIndexFixture(t)
	broken := filepath.Join(f.dir, "man", "man1", "broken.1.gz")
	require.NoError(t, os.WriteFile(broken, []byte("not gzip"), 0o644))

	ix := NewIndexer(&fakeEmbedder{dim: 3}, f.store, f.meta, IndexerOptions{RequestsPerSecond: 1000}, nil)
	stats, err := ix.Run(context.Background(), append(f.pages, broken))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 1, stats.Failed)
}

func TestIndexer_EmbeddingFailureStopsRun(t *testing.T) {
	f := newIndexFixture(t)
	ix := NewIndexer(&fakeEmbedder{err: errors.New("connection refused")}, f.store, f.meta,
		IndexerOptions{RequestsPerSecond: 1000}, nil)

	_, err := ix.Run(context.Background(), f.pages)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConnectivity), "got %v", err)
}

func TestIndexer_DimensionChangeNeedsRebuild(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()
	opts := IndexerOptions{RequestsPerSecond: 1000}

	_, err := NewIndexer(&fakeEmbedder{dim: 4}, f.store, f.meta, opts, nil).Run(ctx, f.pages)
	require.NoError(t, err)

	writePage(t, f.pages[1], manPage("find", "walk a file hierarchy"))
	_, err = NewIndexer(&fakeEmbedder{dim: 8}, f.store, f.meta, opts, nil).Run(ctx, f.pages)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConfiguration), "got %v", err)

	opts.Rebuild = true
	stats, err := NewIndexer(&fakeEmbedder{dim: 8}, f.store, f.meta, opts, nil).Run(ctx, f.pages)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 8, stats.Dimension)
}

func TestIndexer_Cancelled(t *testing.T) {
	f := newIndexFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndexer(&fakeEmbedder{dim: 2}, f.store, f.meta, IndexerOptions{}, nil).Run(ctx, f.pages)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestRecommendModel(t *testing.T) {
	tests := []struct {
		ram  float64
		want string
	}{
		{32, "llama3.1:8b"},
		{8, "llama3.1:8b"},
		{7.5, "mistral:7b"},
		{6, "mistral:7b"},
		{4, "llama3.2:3b"},
		{3, "phi3:mini"},
		{0, "llama3.2:3b"},
	}
	for _, tt := range tests {
		if got := RecommendModel(tt.ram); got != tt.want {
			t.Errorf("RecommendModel(%v) = %q, want %q", tt.ram, got, tt.want)
		}
	}
}

func TestContainsModel(t *testing.T) {
	names := []string{"nomic-embed-text:latest", "llama3.2:3b"}
	assert.True(t, containsModel(names, "nomic-embed-text"))
	assert.True(t, containsModel(names, "llama3.2:3b"))
	assert.False(t, containsModel(names, "llama3.2"))
}
