// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama server.
//
// Only the two calls on the query path are wrapped here: /api/embeddings
// and non-streaming /api/generate in JSON mode. Both are bounded by a
// per-call timeout and retry transient failures with exponential backoff.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ClientError: classified failure (not running, timeout, model not found)
//
// # Usage
//
//	client := ollama.NewClient()
//	vec, err := client.Embed(ctx, "nomic-embed-text", "find large files")
//	if ollama.IsNotRunning(err) {
//	    // suggest `ollama serve`
//	}
//	raw, err := client.Generate(ctx, "llama3.2:3b", prompt)
package ollama
