// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index stores manpage embeddings for similarity search.
//
// The store is a single SQLite database (pure Go driver, no cgo). Each row
// holds one manpage: tool name, section, description, source path, and the
// embedding as a little-endian float32 blob. Search is a brute-force
// cosine scan, which stays fast for the few thousand pages a system has.
//
// The embedding dimension is recorded on first insert. Any later insert or
// query with a different dimension fails with ErrDimensionMismatch, which
// usually means the embedding model changed and the index must be rebuilt.
//
// A separate Metadata file tracks content hashes of indexed manpages so
// `ulm update` only re-embeds what changed.
package index
