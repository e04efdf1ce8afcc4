// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package setup builds and maintains the manpage index.

# Pipeline

	Scanner.Scan      man1/man8 pages under the default dirs and MANPATH
	Extract           NAME one-liner and SYNOPSIS from each page
	Indexer.Run       embed changed pages and upsert them into the store
	Watcher           re-run the indexer for pages that change on disk

The indexer is incremental: index.Metadata records a content hash per page,
so a second run only embeds new or modified pages and deletes vectors for
pages that disappeared.

# Models

RecommendModel picks a generation model from the machine's RAM, and
ModelManager lists and pulls models through the Ollama API.
*/
package setup
