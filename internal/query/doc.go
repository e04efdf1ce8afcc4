// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package query gathers everything a prompt is built from.
//
//   - Retriever: embeds the query and finds the closest manpages
//   - ScanDirectory: classifies the working directory by marker files
//   - DocLoader: renders manpage text for the best match
//   - TruncateReference: fits manpage text to a character budget, keeping
//     NAME, SYNOPSIS and OPTIONS ahead of free text
package query
