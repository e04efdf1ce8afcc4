// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the ulm command tree.
//
// # Usage
//
//	ulm "find files larger than 100MB"   suggest commands and pick one
//	ulm --print "compress a directory"   print suggestions as Markdown
//	ulm setup                            pull models and build the index
//	ulm update [--rebuild] [--watch]     refresh the index
//	ulm doctor                           check backend, models and index
//	ulm config show|path|get|set         inspect or change settings
//
// A query runs the suggestion pipeline, then the interactive selector
// under a terminal guard, then the chosen action. The process exits with
// the executed command's exit code.
//
// # Exit Codes
//
//	0  success, or the user aborted
//	1  general error
//	2  invalid usage
//	3  configuration, model or index problem
//	5  backend unreachable
//	7  no matching tools
//	8  backend timeout
//
// Errors are printed to stderr as one "[ERROR]" line followed by a hint.
package cli
