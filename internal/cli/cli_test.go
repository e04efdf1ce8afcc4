// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/config"
	"github.com/jeranaias/ulm/internal/index"
	"github.com/jeranaias/ulm/internal/llm"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ollama"
)

// =============================================================================
// EXIT CODES AND HINTS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Reason: "a query is required"}, ExitUsageError},
		{"configuration", model.Configuration("index not found at /x", nil), ExitConfigError},
		{"connectivity", model.Connectivity("cannot reach ollama", nil), ExitNetworkError},
		{"rejected request", model.Configuration(`Ollama rejected the request for model "x"`, nil), ExitConfigError},
		{"no match", model.NoMatchingTools("make coffee"), ExitNotFoundError},
		{"deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"validation", config.ValidateErrors{{Field: "query.search_limit", Message: "must be at least 1"}}, ExitConfigError},
		{"malformed", model.MalformedResponse("nope", nil), ExitGeneralError},
		{"plain", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHint(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"usage example", &UsageError{Reason: "x", Example: `ulm "list files"`}, `Example: ulm "list files"`},
		{"usage without example", &UsageError{Reason: "x"}, ""},
		{"model named in error", model.Configuration(`model "mistral:7b" not found`, ollama.ErrModelNotFound), "Pull the model: ollama pull mistral:7b"},
		{"model from config", ollama.ErrModelNotFound, "Pull the model: ollama pull " + cfg.Models.LLMModel},
		{"dimension", &index.DimensionError{Stored: 768, Got: 384}, "Rebuild the index: ulm update --rebuild"},
		{"missing index", model.Configuration("index not found at /tmp/x.db", nil), "Run setup first: ulm setup"},
		{"rejected request", model.Configuration(`Ollama rejected the request for model "nomic-embed-text"`, &ollama.ClientError{Type: ollama.ErrTypeRejected, Message: "does not support generate"}), "Check the configured model names: ulm config show"},
		{"api key", model.Configuration("backend rejected the API key", nil), "Set the key with: ulm config set backend.openai_api_key <key> (or ULM_OPENAI_API_KEY)"},
		{"connectivity", model.Connectivity("cannot reach ollama", nil), "Ensure Ollama is running: ollama serve"},
		{"no match", model.NoMatchingTools("q"), "Try rephrasing, or run 'ulm update' to index new manpages"},
		{"validation", config.ValidateErrors{{Field: "log.level", Message: "bad"}}, "Fix the value with: ulm config set <key> <value>"},
		{"nothing", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hint(tt.err, cfg))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, model.NoMatchingTools("brew coffee"), nil)

	lines := strings.Split(strings.TrimRight(ansi.Strip(buf.String()), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[ERROR] No matching tools found for "brew coffee"`, lines[0])
	assert.Equal(t, "  Try rephrasing, or run 'ulm update' to index new manpages", lines[1])
}

func TestDisplayError_HidesRawResponse(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, model.MalformedResponse("SECRET MODEL OUTPUT", errors.New("bad json")), nil)

	out := buf.String()
	assert.Contains(t, out, "Could not understand the model's response")
	assert.NotContains(t, out, "SECRET MODEL OUTPUT")
}

func TestSuggestionsMarkdown(t *testing.T) {
	md := SuggestionsMarkdown("delete logs", []model.CommandSuggestion{
		{Command: "find . -name '*.log'", Title: "List logs", Explanation: "Shows the files first.", RiskLevel: model.RiskSafe},
		{Command: "find . -name '*.log' -delete", RiskLevel: model.RiskDestructive},
	})

	want := "# Suggestions for \"delete logs\"\n" +
		"\n## 1. List logs\n\n```sh\nfind . -name '*.log'\n```\n\nShows the files first.\n" +
		"\n## 2. Suggestion 2\n\n```sh\nfind . -name '*.log' -delete\n```\n\n**Risk:** destructive\n"
	assert.Equal(t, want, md)
}

// =============================================================================
// END TO END
// =============================================================================

type fakeBackend struct {
	vec      []float32
	response string
	prompts  []string
}

func (f *fakeBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func (f *fakeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, nil
}

func (f *fakeBackend) Name() string { return "fake" }

type fakeDocs struct{}

func (fakeDocs) Load(ctx context.Context, m model.SearchMatch) (string, error) {
	return "NAME\n" + m.ToolName + " - " + m.Description + "\n\nOPTIONS\n-size N  file size\n", nil
}

type testEnv struct {
	app        *App
	backend    *fakeBackend
	stdout     *bytes.Buffer
	stderr     *bytes.Buffer
	configPath string
	indexPath  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, k := range []string{"ULM_OLLAMA_URL", "ULM_LLM_MODEL", "ULM_EMBEDDING_MODEL", "ULM_LOG_LEVEL", "ULM_LOG_FILE", "ULM_HANDOFF"} {
		t.Setenv(k, "")
	}

	env := &testEnv{
		backend: &fakeBackend{
			vec:      []float32{1, 0, 0},
			response: `{"suggestions":[{"command":"find . -size +100M","title":"Find large files","explanation":"Lists files over 100MB.","risk_level":"safe"}]}`,
		},
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
		configPath: filepath.Join(dir, "config.toml"),
		indexPath:  filepath.Join(dir, "index.db"),
	}

	cfg := config.Default()
	cfg.Index.Path = env.indexPath
	require.NoError(t, config.SaveTOML(cfg, env.configPath))
	return env
}

func (e *testEnv) run(args ...string) int {
	e.stdout.Reset()
	e.stderr.Reset()
	a := New()
	a.Stdin = strings.NewReader("")
	a.Stdout = e.stdout
	a.Stderr = e.stderr
	a.NewBackend = func(*config.Config, *zap.Logger) (llm.Backend, error) { return e.backend, nil }
	a.Docs = fakeDocs{}
	a.Interactive = func() bool { return false }
	e.app = a
	return a.Main(context.Background(), append([]string{"--config", e.configPath}, args...))
}

func (e *testEnv) seedIndex(t *testing.T) {
	t.Helper()
	store, err := index.Open(e.indexPath)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Upsert(context.Background(),
		index.Document{ToolName: "find", Section: "1", Description: "search for files in a directory hierarchy", SourcePath: "/usr/share/man/man1/find.1.gz", Text: "find", Vector: []float32{1, 0, 0}},
		index.Document{ToolName: "tar", Section: "1", Description: "an archiving utility", SourcePath: "/usr/share/man/man1/tar.1.gz", Text: "tar", Vector: []float32{0, 0, 1}},
	))
}

func TestMain_PrintsSuggestions(t *testing.T) {
	env := newTestEnv(t)
	env.seedIndex(t)

	code := env.run("find", "files", "larger", "than", "100MB")
	require.Equal(t, ExitSuccess, code, "stderr: %s", env.stderr.String())

	out := env.stdout.String()
	assert.Contains(t, out, `# Suggestions for "find files larger than 100MB"`)
	assert.Contains(t, out, "find . -size +100M")

	require.Len(t, env.backend.prompts, 1)
	assert.Contains(t, env.backend.prompts[0], "-size N")
}

func TestMain_NoMatchingTools(t *testing.T) {
	env := newTestEnv(t)
	env.seedIndex(t)
	env.backend.vec = []float32{0, 1, 0}

	code := env.run("brew", "coffee")
	assert.Equal(t, ExitNotFoundError, code)
	assert.Contains(t, env.stderr.String(), `No matching tools found for "brew coffee"`)
	assert.Empty(t, env.backend.prompts)
}

func TestMain_MalformedResponse(t *testing.T) {
	env := newTestEnv(t)
	env.seedIndex(t)
	env.backend.response = "I think you want find."

	code := env.run("find", "big", "files")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, env.stderr.String(), "Could not understand the model's response")
	assert.NotContains(t, env.stderr.String(), "I think you want find.")
}

func TestMain_MissingIndex(t *testing.T) {
	env := newTestEnv(t)

	code := env.run("list", "files")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, env.stderr.String(), "Run setup first: ulm setup")
}

func TestMain_EmbeddingModelChanged(t *testing.T) {
	env := newTestEnv(t)
	env.seedIndex(t)

	cfg := config.Default()
	cfg.Index.Path = env.indexPath
	cfg.Index.LastEmbeddingModel = "all-minilm"
	cfg.Index.EmbeddingDimension = 384
	require.NoError(t, config.SaveTOML(cfg, env.configPath))

	code := env.run("list", "files")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, env.stderr.String(), "ulm update --rebuild")
}

func TestMain_UsageErrors(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, ExitUsageError, env.run())
	assert.Contains(t, env.stderr.String(), "a query is required")

	assert.Equal(t, ExitUsageError, env.run("--no-such-flag", "x"))
	assert.Equal(t, ExitUsageError, env.run("config", "get"))
}

func TestMain_Version(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, ExitSuccess, env.run("version"))
	assert.Equal(t, fmt.Sprintf("ulm version %s (commit %s, built %s)\n", Version, GitCommit, BuildDate), env.stdout.String())
}

func TestMain_ConfigGetSet(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, ExitSuccess, env.run("config", "set", "query.search_limit", "5"))
	require.Equal(t, ExitSuccess, env.run("config", "get", "query.search_limit"))
	assert.Equal(t, "5\n", env.stdout.String())

	cfg, err := config.LoadFromPath(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Query.SearchLimit)
	assert.Equal(t, env.indexPath, cfg.Index.Path)

	assert.Equal(t, ExitConfigError, env.run("config", "set", "query.similarity_threshold", "2"))
	assert.Contains(t, env.stderr.String(), "query.similarity_threshold")
	assert.Equal(t, ExitConfigError, env.run("config", "set", "query.similarity_threshold", "0"))

	assert.Equal(t, ExitUsageError, env.run("config", "get", "query.nope"))
}

func TestMain_ConfigDoesNotPersistEnvironment(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("ULM_LLM_MODEL", "from-env")

	require.Equal(t, ExitSuccess, env.run("config", "set", "ui.handoff", "true"))

	data, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "from-env")
	assert.Contains(t, string(data), "handoff = true")
}

func TestMain_ConfigPath(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, ExitSuccess, env.run("config", "path"))
	assert.Equal(t, env.configPath+"\n", env.stdout.String())
}

func TestIndexPaths_RecordsDimension(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	page := filepath.Join(dir, "man1", "grep.1")
	require.NoError(t, os.MkdirAll(filepath.Dir(page), 0o755))
	require.NoError(t, os.WriteFile(page,
		[]byte(".TH GREP 1\n.SH NAME\ngrep \\- print lines that match patterns\n.SH SYNOPSIS\n.B grep\n[OPTION...] PATTERNS [FILE...]\n"), 0o644))

	// Load the config the same way a command would.
	env.run("config", "path")
	a := env.app
	cfg, err := a.loadConfig()
	require.NoError(t, err)
	a.cfg = cfg

	stats, err := a.indexPaths(context.Background(), []string{page}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 3, stats.Dimension)

	saved, err := config.LoadFromPath(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Index.EmbeddingDimension)
	assert.Equal(t, saved.Models.EmbeddingModel, saved.Index.LastEmbeddingModel)

	_, err = os.Stat(index.MetadataPath(env.indexPath))
	assert.NoError(t, err)

	// A second run finds nothing to do.
	stats, err = a.indexPaths(context.Background(), []string{page}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, 1, stats.Unchanged)
}

func TestDoctor_ReportsMissingIndex(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.Default()
	cfg.Index.Path = env.indexPath
	cfg.Backend.Provider = llm.ProviderOpenAI
	cfg.Backend.OpenAIBaseURL = "http://127.0.0.1:1/v1"
	cfg.Backend.OpenAIAPIKey = "sk-test"
	require.NoError(t, config.SaveTOML(cfg, env.configPath))

	code := env.run("doctor")
	assert.Equal(t, ExitGeneralError, code)

	out := ansi.Strip(env.stdout.String())
	assert.Contains(t, out, "[OK] Config valid")
	assert.Contains(t, out, "[FAIL] No index at "+env.indexPath)
	assert.Contains(t, out, "-> Run: ulm setup")
	assert.Contains(t, env.stderr.String(), "health check(s) failed")
}

func TestDoctor_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.seedIndex(t)
	cfg := config.Default()
	cfg.Index.Path = env.indexPath
	cfg.Backend.Provider = llm.ProviderOpenAI
	cfg.Backend.OpenAIBaseURL = "http://127.0.0.1:1/v1"
	cfg.Backend.OpenAIAPIKey = "sk-test"
	require.NoError(t, config.SaveTOML(cfg, env.configPath))

	code := env.run("doctor", "--json")
	assert.Equal(t, ExitSuccess, code, "stderr: %s", env.stderr.String())
	assert.Contains(t, env.stdout.String(), `"healthy": true`)
	assert.Contains(t, env.stdout.String(), `"message": "Index holds 2 manpages"`)
}
