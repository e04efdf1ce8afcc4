// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and user-facing error output for ulm.
//
// Commands always return errors; Main prints exactly one "[ERROR]" line
// followed by an optional indented hint and picks the exit code.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jeranaias/ulm/internal/config"
	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ollama"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration, model or index problems
	ExitConfigError = 3
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates no manpage matched the query
	ExitNotFoundError = 7
	// ExitTimeoutError indicates the backend did not answer in time
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError represents invalid arguments.
type UsageError struct {
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	return e.Reason
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for err.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	if isTimeout(err) {
		return ExitTimeoutError
	}

	switch model.KindOf(err) {
	case model.KindConfiguration:
		return ExitConfigError
	case model.KindConnectivity:
		return ExitNetworkError
	case model.KindNoMatchingTools:
		return ExitNotFoundError
	}

	var validation config.ValidateErrors
	if errors.As(err, &validation) {
		return ExitConfigError
	}
	return ExitGeneralError
}

func isTimeout(err error) bool {
	return ollama.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}

// =============================================================================
// GUIDANCE
// =============================================================================

// guidance maps an error to the next step the user should take. Kind
// checks come first; message checks catch errors from lower layers.
var guidance = []struct {
	match func(err error, msg string) bool
	hint  func(err error, cfg *config.Config) string
}{
	{
		match: func(err error, msg string) bool {
			return ollama.IsModelNotFound(err) || strings.Contains(msg, "not installed") || strings.Contains(msg, "model not found")
		},
		hint: func(err error, cfg *config.Config) string {
			return "Pull the model: ollama pull " + modelName(err, cfg)
		},
	},
	{
		match: func(err error, msg string) bool {
			return errors.Is(err, index.ErrDimensionMismatch) || strings.Contains(msg, "dimension")
		},
		hint: fixed("Rebuild the index: ulm update --rebuild"),
	},
	{
		match: func(err error, msg string) bool {
			return strings.Contains(msg, "index not found") || strings.Contains(msg, "no such table")
		},
		hint: fixed("Run setup first: ulm setup"),
	},
	{
		match: func(err error, msg string) bool { return strings.Contains(msg, "rejected the api key") },
		hint:  fixed("Set the key with: ulm config set backend.openai_api_key <key> (or ULM_OPENAI_API_KEY)"),
	},
	{
		match: func(err error, msg string) bool {
			return ollama.IsRejected(err) || strings.Contains(msg, "rejected the request")
		},
		hint: fixed("Check the configured model names: ulm config show"),
	},
	{
		match: func(err error, msg string) bool {
			return ollama.IsNotRunning(err) || model.IsKind(err, model.KindConnectivity) ||
				strings.Contains(msg, "connection refused")
		},
		hint: fixed("Ensure Ollama is running: ollama serve"),
	},
	{
		match: func(err error, msg string) bool { return model.IsKind(err, model.KindNoMatchingTools) },
		hint:  fixed("Try rephrasing, or run 'ulm update' to index new manpages"),
	},
	{
		match: func(err error, msg string) bool { return model.IsKind(err, model.KindMalformedResponse) },
		hint:  fixed("The model returned an unexpected answer; try again or choose a larger model"),
	},
	{
		match: func(err error, msg string) bool { return model.IsKind(err, model.KindClipboard) },
		hint:  fixed("Clipboard unavailable (needs xclip/xsel or wl-copy on Linux)"),
	},
	{
		match: func(err error, msg string) bool { return model.IsKind(err, model.KindTerminal) },
		hint:  fixed("An interactive terminal is required (check TERM)"),
	},
	{
		match: func(err error, msg string) bool {
			var validation config.ValidateErrors
			return errors.As(err, &validation)
		},
		hint: fixed("Fix the value with: ulm config set <key> <value>"),
	},
}

func fixed(s string) func(error, *config.Config) string {
	return func(error, *config.Config) string { return s }
}

var quotedModel = regexp.MustCompile(`model "([^"]+)"`)

// modelName prefers the model named in err, then the configured LLM.
func modelName(err error, cfg *config.Config) string {
	if m := quotedModel.FindStringSubmatch(err.Error()); m != nil {
		return m[1]
	}
	if cfg == nil {
		return config.Default().Models.LLMModel
	}
	return cfg.Models.LLMModel
}

// Hint returns the guidance line for err, or "" when there is none.
func Hint(err error, cfg *config.Config) string {
	if err == nil {
		return ""
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		if usage.Example != "" {
			return "Example: " + usage.Example
		}
		return ""
	}

	msg := strings.ToLower(err.Error())
	for _, g := range guidance {
		if g.match(err, msg) {
			return g.hint(err, cfg)
		}
	}
	return ""
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes the error line and its hint to w.
func DisplayError(w io.Writer, err error, cfg *config.Config) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), userMessage(err))
	if hint := Hint(err, cfg); hint != "" {
		fmt.Fprintf(w, "  %s\n", HintStyle.Render(hint))
	}
}

// userMessage is the text shown for err. Backend responses are never
// included.
func userMessage(err error) string {
	var me *model.Error
	if errors.As(err, &me) {
		switch me.Kind {
		case model.KindNoMatchingTools:
			return fmt.Sprintf("No matching tools found for %q", me.Query)
		case model.KindMalformedResponse:
			return "Could not understand the model's response"
		}
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}
