// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package suggest turns a natural-language request into command
// suggestions.
//
// Pipeline.Run retrieves candidate tools, refuses to continue when none
// clears the similarity threshold, loads documentation for the best
// match, probes the working directory, composes a bounded prompt, calls
// the generator and validates its JSON answer with Parse.
//
// Errors carry a model.Kind:
//
//   - KindNoMatchingTools: retrieval found nothing good enough; the
//     generator was not called
//   - KindConnectivity: the embedding or generation backend was unreachable
//     or timed out
//   - KindConfiguration: the backend rejected the model or request
//   - KindMalformedResponse: the generator's answer was unusable
package suggest
