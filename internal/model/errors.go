// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind categorizes errors so the CLI can pick an exit code and a hint.
type Kind int

const (
	KindUnknown Kind = iota

	// KindConnectivity: embedding or generation backend unreachable or timed out.
	KindConnectivity

	// KindNoMatchingTools: retrieval found nothing above the similarity threshold.
	KindNoMatchingTools

	// KindMalformedResponse: backend output failed validation.
	KindMalformedResponse

	// KindClipboard: clipboard unavailable. Recoverable inside the selector.
	KindClipboard

	// KindTerminal: raw mode could not be entered or restored.
	KindTerminal

	// KindConfiguration: bad config, missing index, model or dimension mismatch.
	KindConfiguration
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindNoMatchingTools:
		return "no matching tools"
	case KindMalformedResponse:
		return "malformed response"
	case KindClipboard:
		return "clipboard failure"
	case KindTerminal:
		return "terminal failure"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is an error with a Kind.
type Error struct {
	Kind    Kind
	Message string

	// Query echoes the user query for NoMatchingTools.
	Query string

	// Raw holds the backend response for MalformedResponse. It is meant for
	// debug logs and is never part of Error().
	Raw string

	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind so sentinel-style checks work:
//
//	errors.Is(err, &model.Error{Kind: model.KindConnectivity})
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// Connectivity wraps a backend failure.
func Connectivity(msg string, cause error) *Error {
	return &Error{Kind: KindConnectivity, Message: msg, Cause: cause}
}

// NoMatchingTools reports an empty retrieval for query.
func NoMatchingTools(query string) *Error {
	return &Error{
		Kind:    KindNoMatchingTools,
		Message: fmt.Sprintf("no matching tools found for %q", query),
		Query:   query,
	}
}

// MalformedResponse reports backend output that could not be understood.
// raw is retained for diagnostics only.
func MalformedResponse(raw string, cause error) *Error {
	return &Error{
		Kind:    KindMalformedResponse,
		Message: "could not understand the model's response",
		Raw:     raw,
		Cause:   cause,
	}
}

// Configuration reports a setup problem.
func Configuration(msg string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Message: msg, Cause: cause}
}

// Terminal reports a raw-mode failure.
func Terminal(msg string, cause error) *Error {
	return &Error{Kind: KindTerminal, Message: msg, Cause: cause}
}

// Clipboard reports a clipboard failure.
func Clipboard(cause error) *Error {
	return &Error{Kind: KindClipboard, Message: "clipboard unavailable", Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
