// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/ulm/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDimensionMismatch means a vector does not match the stored dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	ErrDatabaseError = errors.New("database error")
)

// DimensionError carries both sides of a mismatch. It matches
// ErrDimensionMismatch under errors.Is.
type DimensionError struct {
	Stored int
	Got    int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index has %d, vector has %d", e.Stored, e.Got)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is one manpage ready to be stored.
type Document struct {
	ToolName    string
	Section     string
	Description string
	SourcePath  string

	// Text is the string that was embedded.
	Text   string
	Vector []float32
}

// =============================================================================
// STORE
// =============================================================================

// Store is the on-disk vector index. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the index database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-16000", // 16MB cache
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dimension returns the embedding dimension recorded on first insert,
// or 0 for an index that has never held a vector.
func (s *Store) Dimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension(ctx, s.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) dimension(ctx context.Context, q queryer) (int, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'dimension'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: bad dimension %q", ErrDatabaseError, value)
	}
	return dim, nil
}

// Count returns the number of indexed manpages.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tools").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return n, nil
}

// Upsert stores docs, replacing rows with the same SourcePath.
// All documents must share the index dimension.
func (s *Store) Upsert(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	dim, err := s.dimension(ctx, tx)
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(docs[0].Vector)
		if _, err := tx.ExecContext(ctx,
			"UPDATE metadata SET value = ? WHERE key = 'dimension'", strconv.Itoa(dim)); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tools (tool_name, section, description, source_path, embed_text, vector, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			tool_name = excluded.tool_name,
			section = excluded.section,
			description = excluded.description,
			embed_text = excluded.embed_text,
			vector = excluded.vector,
			indexed_at = excluded.indexed_at
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, d := range docs {
		if len(d.Vector) != dim {
			return &DimensionError{Stored: dim, Got: len(d.Vector)}
		}
		if _, err := stmt.ExecContext(ctx, d.ToolName, d.Section, d.Description,
			d.SourcePath, d.Text, encodeVector(d.Vector), now); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	return tx.Commit()
}

// Delete removes the rows for sourcePaths and returns how many went away.
func (s *Store) Delete(ctx context.Context, sourcePaths ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	removed := 0
	for _, p := range sourcePaths {
		res, err := tx.ExecContext(ctx, "DELETE FROM tools WHERE source_path = ?", p)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, tx.Commit()
}

// Reset drops every row and forgets the dimension.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM tools"); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE metadata SET value = '0' WHERE key = 'dimension'"); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// Search returns up to limit manpages ordered by descending cosine
// similarity to vec. An empty index yields an empty result.
func (s *Store) Search(ctx context.Context, vec []float32, limit int) ([]model.SearchMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dim, err := s.dimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 || limit <= 0 {
		return []model.SearchMatch{}, nil
	}
	if len(vec) != dim {
		return nil, &DimensionError{Stored: dim, Got: len(vec)}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT tool_name, section, description, source_path, vector FROM tools")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	matches := make([]model.SearchMatch, 0, 64)
	for rows.Next() {
		var (
			m    model.SearchMatch
			blob []byte
		)
		if err := rows.Scan(&m.ToolName, &m.Section, &m.Description, &m.SourcePath, &blob); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		stored, err := decodeVector(blob)
		if err != nil || len(stored) != dim {
			// Skip corrupt rows rather than failing the whole query
			continue
		}
		m.Score = CosineSimilarity(vec, stored)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ToolName < matches[j].ToolName
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
