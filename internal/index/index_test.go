// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func doc(name, path string, vec ...float32) Document {
	return Document{ToolName: name, Section: "1", Description: name + " tool", SourcePath: path, Vector: vec}
}

// =============================================================================
// VECTOR TESTS
// =============================================================================

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, float32(math.Pi)}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_EmptyIndexSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	dim, err := s.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)
}

func TestStore_SearchOrdersByScore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx,
		doc("find", "/man1/find.1", 1, 0, 0),
		doc("grep", "/man1/grep.1", 0, 1, 0),
		doc("locate", "/man1/locate.1", 0.9, 0.1, 0),
	))

	got, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "find", got[0].ToolName)
	assert.Equal(t, "locate", got[1].ToolName)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.Equal(t, "/man1/find.1", got[0].SourcePath)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_UpsertReplacesBySourcePath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, doc("find", "/man1/find.1", 1, 0)))
	updated := doc("find", "/man1/find.1", 0, 1)
	updated.Description = "search for files"
	require.NoError(t, s.Upsert(ctx, updated))

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)

	got, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "search for files", got[0].Description)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, doc("find", "/a", 1, 0, 0)))

	_, err := s.Search(ctx, []float32{1, 0}, 3)
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)
	var de *DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 3, de.Stored)
	assert.Equal(t, 2, de.Got)

	err = s.Upsert(ctx, doc("grep", "/b", 1, 0))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestStore_DeleteAndReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, doc("a", "/a", 1), doc("b", "/b", 1)))

	removed, err := s.Delete(ctx, "/a", "/missing")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, s.Reset(ctx))
	n, _ := s.Count(ctx)
	assert.Equal(t, 0, n)

	// A reset index accepts a new dimension
	require.NoError(t, s.Upsert(ctx, doc("c", "/c", 1, 2, 3, 4)))
	dim, _ := s.Dimension(ctx)
	assert.Equal(t, 4, dim)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, doc("tar", "/tar.1", 0.5, 0.5)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	dim, _ := s.Dimension(ctx)
	assert.Equal(t, 2, dim)
	got, err := s.Search(ctx, []float32{1, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// =============================================================================
// METADATA TESTS
// =============================================================================

func TestMetadata_FilterChanged(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.1")
	b := filepath.Join(dir, "b.1")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("beta"), 0644))

	metaPath := filepath.Join(dir, "meta", "index_metadata.json")
	m, err := LoadMetadata(metaPath)
	require.NoError(t, err)

	changed, hashes := m.FilterChanged([]string{a, b})
	assert.ElementsMatch(t, []string{a, b}, changed)
	for _, p := range changed {
		m.Update(p, hashes[p])
	}
	require.NoError(t, m.Save())

	m, err = LoadMetadata(metaPath)
	require.NoError(t, err)
	changed, _ = m.FilterChanged([]string{a, b})
	assert.Empty(t, changed)

	require.NoError(t, os.WriteFile(b, []byte("beta v2"), 0644))
	changed, _ = m.FilterChanged([]string{a, b})
	assert.Equal(t, []string{b}, changed)
}

func TestMetadata_RemoveDeleted(t *testing.T) {
	m, err := LoadMetadata(filepath.Join(t.TempDir(), "m.json"))
	require.NoError(t, err)
	m.Update("/x", "1")
	m.Update("/y", "2")
	m.Update("/z", "3")

	removed := m.RemoveDeleted([]string{"/y"})
	assert.Equal(t, []string{"/x", "/z"}, removed)
	assert.Len(t, m.Files, 1)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0644))
	h1, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, _ := HashFile(path)
	assert.Equal(t, h1, h2)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMetadataPath(t *testing.T) {
	assert.Equal(t, "/data/ulm/index_meta.json", MetadataPath("/data/ulm/index.db"))
	assert.Equal(t, "/tmp/idx_meta.json", MetadataPath("/tmp/idx"))
}
