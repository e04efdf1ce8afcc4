// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for ulm.
//
// Command: doctor [--json] [--probe]
// Short:   Check the configuration, backend, models and index
//
// Health Checks Performed:
//   1. Config Valid       - Loads and validates the configuration file
//   2. Backend Reachable  - Ollama (or the OpenAI-compatible API) answers
//   3. Models Installed   - Embedding and generation models are present
//   4. Index Present      - The index exists and holds documents
//   5. Index Dimension    - Stored vectors match the embedding model
//   6. Clipboard          - A clipboard backend is available
//   7. Terminal           - stdin/stdout are terminals for the selector
//
// Exit Codes:
//   0   All checks passed (warnings allowed)
//   1   One or more checks failed

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ulm/internal/action"
	"github.com/jeranaias/ulm/internal/config"
	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/llm"
	"github.com/jeranaias/ulm/internal/ollama"
	"github.com/jeranaias/ulm/internal/setup"
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the status tag shown in front of a check.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return SuccessStyle.Render("[OK]")
	case CheckWarn:
		return WarningStyle.Render("[!!]")
	case CheckFail:
		return ErrorStyle.Render("[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"-"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"` // Suggested fix command or instruction
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.Status.Symbol(), ValueStyle.Render(c.Message))
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + HintStyle.Render("    -> "+c.Fix)
	}
	return result
}

func pass(name, format string, args ...any) *HealthCheck {
	return &HealthCheck{Name: name, Status: CheckPass, Message: fmt.Sprintf(format, args...)}
}

func warn(name, fix, format string, args ...any) *HealthCheck {
	return &HealthCheck{Name: name, Status: CheckWarn, Message: fmt.Sprintf(format, args...), Fix: fix}
}

func fail(name, fix, format string, args ...any) *HealthCheck {
	return &HealthCheck{Name: name, Status: CheckFail, Message: fmt.Sprintf(format, args...), Fix: fix}
}

// =============================================================================
// COMMAND
// =============================================================================

func (a *App) doctorCommand() *cobra.Command {
	var asJSON, probe bool
	cmd := &cobra.Command{
		Use:         "doctor",
		Aliases:     []string{"diag"},
		Short:       "Check the configuration, backend, models and index",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{rawConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := a.runChecks(cmd.Context(), probe)
			if asJSON {
				return writeChecksJSON(a.Stdout, checks)
			}
			return writeChecks(a.Stdout, checks)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&probe, "probe", false, "embed a test string to confirm the index dimension")
	return cmd
}

// failedChecksError is returned when at least one check failed.
type failedChecksError struct{ n int }

func (e *failedChecksError) Error() string {
	return fmt.Sprintf("%d health check(s) failed", e.n)
}

func countStatus(checks []*HealthCheck) (passed, warned, failed int) {
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			passed++
		case CheckWarn:
			warned++
		case CheckFail:
			failed++
		}
	}
	return passed, warned, failed
}

func writeChecks(w io.Writer, checks []*HealthCheck) error {
	fmt.Fprintln(w, TitleStyle.Render("ulm doctor"))
	for _, c := range checks {
		fmt.Fprintln(w, c.Render())
	}

	passed, warned, failed := countStatus(checks)
	fmt.Fprintln(w)
	fmt.Fprintln(w, SeparatorStyle.Render(strings.Repeat("-", 41)))
	parts := []string{fmt.Sprintf("%d passed", passed)}
	if warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", warned)))
	}
	if failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintln(w, DimStyle.Render(strings.Join(parts, ", ")))

	if failed > 0 {
		return &failedChecksError{n: failed}
	}
	return nil
}

type doctorReport struct {
	Checks  []doctorCheck `json:"checks"`
	Passed  int           `json:"passed"`
	Warned  int           `json:"warned"`
	Failed  int           `json:"failed"`
	Healthy bool          `json:"healthy"`
}

type doctorCheck struct {
	*HealthCheck
	Status string `json:"status"`
}

func writeChecksJSON(w io.Writer, checks []*HealthCheck) error {
	passed, warned, failed := countStatus(checks)
	report := doctorReport{Passed: passed, Warned: warned, Failed: failed, Healthy: failed == 0}
	for _, c := range checks {
		report.Checks = append(report.Checks, doctorCheck{HealthCheck: c, Status: c.Status.String()})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if failed > 0 {
		return &failedChecksError{n: failed}
	}
	return nil
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// runChecks runs every check in order. Later checks are skipped when the
// ones they depend on fail.
func (a *App) runChecks(ctx context.Context, probe bool) []*HealthCheck {
	var checks []*HealthCheck

	cfg, check := a.checkConfig()
	checks = append(checks, check)
	if cfg == nil {
		return checks
	}
	a.cfg = cfg

	backendOK := true
	if cfg.Backend.Provider == llm.ProviderOpenAI {
		checks = append(checks, checkOpenAI(cfg))
	} else {
		check := checkOllama(ctx, cfg)
		backendOK = check.Status == CheckPass
		checks = append(checks, check)
		if backendOK {
			checks = append(checks, a.checkModels(ctx, cfg)...)
		}
	}

	store, check := checkIndex(ctx, cfg)
	checks = append(checks, check)
	if store != nil {
		checks = append(checks, a.checkDimension(ctx, cfg, store, probe && backendOK))
		store.Close()
	}

	checks = append(checks, checkClipboard(), checkTerminal())
	return checks
}

func (a *App) checkConfig() (*config.Config, *HealthCheck) {
	const name = "Config"
	path, _ := a.configFile()
	cfg, err := a.loadConfig()
	if err != nil {
		var validation config.ValidateErrors
		if errors.As(err, &validation) {
			return nil, fail(name, "Run: ulm config set <key> <value>", "Config invalid: %s", validation.Error())
		}
		return nil, fail(name, "Check the TOML syntax in "+path, "Config unreadable: %v", errors.Unwrap(err))
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, warn(name, "Run: ulm setup", "No config file at %s (using defaults)", path)
	}
	return cfg, pass(name, "Config valid (%s)", path)
}

func checkOllama(ctx context.Context, cfg *config.Config) *HealthCheck {
	const name = "Backend"
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:     cfg.Ollama.URL,
		TagsTimeout: 5 * time.Second,
		MaxRetries:  1,
	})
	version, err := client.Version(ctx)
	if err != nil {
		return fail(name, "Run: ollama serve", "Ollama not reachable at %s", cfg.Ollama.URL)
	}
	return pass(name, "Ollama %s running at %s", version, cfg.Ollama.URL)
}

func checkOpenAI(cfg *config.Config) *HealthCheck {
	const name = "Backend"
	if cfg.Backend.OpenAIAPIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return warn(name, "Run: ulm config set backend.openai_api_key <key>",
			"OpenAI-compatible backend at %s has no API key", cfg.Backend.OpenAIBaseURL)
	}
	return pass(name, "OpenAI-compatible backend at %s", cfg.Backend.OpenAIBaseURL)
}

func (a *App) checkModels(ctx context.Context, cfg *config.Config) []*HealthCheck {
	mm, err := setup.NewModelManager(cfg.Ollama.URL, a.log)
	if err != nil {
		return []*HealthCheck{fail("Models", "", "%v", err)}
	}
	missing, err := mm.Missing(ctx, cfg.Models.EmbeddingModel, cfg.Models.LLMModel)
	if err != nil {
		return []*HealthCheck{fail("Models", "Run: ollama serve", "Cannot list models: %v", errors.Unwrap(err))}
	}

	var checks []*HealthCheck
	for _, m := range []struct{ role, name string }{
		{"Embedding model", cfg.Models.EmbeddingModel},
		{"Generation model", cfg.Models.LLMModel},
	} {
		if !slices.Contains(missing, m.name) {
			checks = append(checks, pass(m.role, "%s %s installed", m.role, m.name))
		} else {
			checks = append(checks, fail(m.role, "Run: ollama pull "+m.name, "%s %s not installed", m.role, m.name))
		}
	}
	return checks
}

func checkIndex(ctx context.Context, cfg *config.Config) (*index.Store, *HealthCheck) {
	const name = "Index"
	path, err := cfg.IndexPath()
	if err != nil {
		return nil, fail(name, "", "Cannot resolve index path: %v", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fail(name, "Run: ulm setup", "No index at %s", path)
	}
	store, err := index.Open(path)
	if err != nil {
		return nil, fail(name, "Run: ulm update --rebuild", "Cannot open index: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		store.Close()
		return nil, fail(name, "Run: ulm update --rebuild", "Cannot read index: %v", err)
	}
	if count == 0 {
		return store, warn(name, "Run: ulm setup", "Index at %s is empty", path)
	}
	return store, pass(name, "Index holds %d manpages", count)
}

func (a *App) checkDimension(ctx context.Context, cfg *config.Config, store *index.Store, probe bool) *HealthCheck {
	const name = "Index dimension"
	if cfg.NeedsIndexRebuild() {
		return fail(name, "Run: ulm update --rebuild",
			"Index built with %s but the embedding model is now %s",
			cfg.Index.LastEmbeddingModel, cfg.Models.EmbeddingModel)
	}
	stored, err := store.Dimension(ctx)
	if err != nil {
		return fail(name, "Run: ulm update --rebuild", "Cannot read index dimension: %v", err)
	}
	if stored == 0 {
		return warn(name, "Run: ulm setup", "Index has no vectors yet")
	}

	if probe {
		backend, err := a.NewBackend(cfg, a.log)
		if err == nil {
			var vec []float32
			vec, err = backend.Embed(ctx, "list directory contents")
			if err == nil && len(vec) != stored {
				return fail(name, "Run: ulm update --rebuild",
					"Index holds %d-dimension vectors but %s returns %d", stored, cfg.Models.EmbeddingModel, len(vec))
			}
		}
		if err != nil {
			return warn(name, "", "Could not probe %s: %s", cfg.Models.EmbeddingModel, userMessage(err))
		}
	}
	return pass(name, "%d-dimension vectors from %s", stored, cfg.Models.EmbeddingModel)
}

func checkClipboard() *HealthCheck {
	const name = "Clipboard"
	if !(action.SystemClipboard{}).Available() {
		return warn(name, "Install xclip, xsel or wl-clipboard",
			"No clipboard backend found; copying from the selector will fail")
	}
	return pass(name, "Clipboard available")
}

func checkTerminal() *HealthCheck {
	const name = "Terminal"
	caps := GetTerminalCapabilities()
	if !caps.StdinTTY || !caps.StdoutTTY {
		return warn(name, "", "Not a terminal; suggestions will be printed instead of selected")
	}
	return pass(name, "Terminal %s, %d columns, %s", caps.Term, caps.Width, ProfileName(caps.ColorProfile))
}
