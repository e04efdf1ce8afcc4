// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ulm.
//
// Configuration file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/ulm/config.toml (or ~/.config/ulm/config.toml)
//   - ~/.ulm/config.toml (legacy, migrated on first load)
//   - Built-in defaults
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/ulm/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ulm configuration.
type Config struct {
	Models  ModelsConfig  `toml:"models" json:"models"`
	Ollama  OllamaConfig  `toml:"ollama" json:"ollama"`
	Backend BackendConfig `toml:"backend" json:"backend"`
	Index   IndexConfig   `toml:"index" json:"index"`
	Query   QueryConfig   `toml:"query" json:"query"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`

	// Legacy single-model layout. Read for migration, never written back.
	LegacyModelName string `toml:"model_name,omitempty" json:"-"`
	LegacyOllamaURL string `toml:"ollama_url,omitempty" json:"-"`
}

// ModelsConfig names the models used for retrieval and generation.
type ModelsConfig struct {
	EmbeddingModel string `toml:"embedding_model" json:"embedding_model"`
	LLMModel       string `toml:"llm_model" json:"llm_model"`
}

// OllamaConfig contains settings for the local Ollama server.
type OllamaConfig struct {
	URL                string `toml:"url" json:"url"`
	GenerateTimeoutSec int    `toml:"generate_timeout_secs" json:"generate_timeout_secs"`
	EmbedTimeoutSec    int    `toml:"embed_timeout_secs" json:"embed_timeout_secs"`
	MaxRetries         int    `toml:"max_retries" json:"max_retries"`
}

// BackendConfig selects the inference provider.
type BackendConfig struct {
	// Provider is "ollama" (default) or "openai" for any OpenAI-compatible API.
	Provider      string `toml:"provider" json:"provider"`
	OpenAIBaseURL string `toml:"openai_base_url" json:"openai_base_url"`
	OpenAIAPIKey  string `toml:"openai_api_key" json:"openai_api_key"`
}

// IndexConfig records the state of the manpage index.
type IndexConfig struct {
	Path               string `toml:"path" json:"path"`
	EmbeddingDimension int    `toml:"embedding_dimension" json:"embedding_dimension"`
	LastEmbeddingModel string `toml:"last_embedding_model" json:"last_embedding_model"`
	Workers            int    `toml:"workers" json:"workers"`
	RequestsPerSecond  int    `toml:"requests_per_second" json:"requests_per_second"`
}

// QueryConfig tunes retrieval and prompt composition.
type QueryConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold" json:"similarity_threshold"`
	SearchLimit         int     `toml:"search_limit" json:"search_limit"`
	ReferenceCharBudget int     `toml:"reference_char_budget" json:"reference_char_budget"`
	TokenBudget         int     `toml:"token_budget" json:"token_budget"`
}

// UIConfig contains selector settings.
type UIConfig struct {
	StatusTTLMillis int `toml:"status_ttl_ms" json:"status_ttl_ms"`

	// Handoff makes K and B return Copy/Edit actions to the executor
	// instead of being handled inside the selector.
	Handoff bool `toml:"handoff" json:"handoff"`
}

// LogConfig controls diagnostic logging. Logging is off unless File is set.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			EmbeddingModel: "nomic-embed-text",
			LLMModel:       "llama3.2:3b",
		},
		Ollama: OllamaConfig{
			URL:                "http://localhost:11434",
			GenerateTimeoutSec: 60,
			EmbedTimeoutSec:    30,
			MaxRetries:         3,
		},
		Backend: BackendConfig{
			Provider: "ollama",
		},
		Index: IndexConfig{
			Workers:           4,
			RequestsPerSecond: 20,
		},
		Query: QueryConfig{
			SimilarityThreshold: 0.7,
			SearchLimit:         3,
			ReferenceCharBudget: 8000,
			TokenBudget:         12000,
		},
		UI: UIConfig{
			StatusTTLMillis: 1000,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Models.EmbeddingModel == "" {
		c.Models.EmbeddingModel = d.Models.EmbeddingModel
	}
	if c.Models.LLMModel == "" {
		c.Models.LLMModel = d.Models.LLMModel
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Ollama.GenerateTimeoutSec == 0 {
		c.Ollama.GenerateTimeoutSec = d.Ollama.GenerateTimeoutSec
	}
	if c.Ollama.EmbedTimeoutSec == 0 {
		c.Ollama.EmbedTimeoutSec = d.Ollama.EmbedTimeoutSec
	}
	if c.Ollama.MaxRetries == 0 {
		c.Ollama.MaxRetries = d.Ollama.MaxRetries
	}
	if c.Backend.Provider == "" {
		c.Backend.Provider = d.Backend.Provider
	}
	if c.Index.Workers == 0 {
		c.Index.Workers = d.Index.Workers
	}
	if c.Index.RequestsPerSecond == 0 {
		c.Index.RequestsPerSecond = d.Index.RequestsPerSecond
	}
	if c.Query.SimilarityThreshold == 0 {
		c.Query.SimilarityThreshold = d.Query.SimilarityThreshold
	}
	if c.Query.SearchLimit == 0 {
		c.Query.SearchLimit = d.Query.SearchLimit
	}
	if c.Query.ReferenceCharBudget == 0 {
		c.Query.ReferenceCharBudget = d.Query.ReferenceCharBudget
	}
	if c.Query.TokenBudget == 0 {
		c.Query.TokenBudget = d.Query.TokenBudget
	}
	if c.UI.StatusTTLMillis == 0 {
		c.UI.StatusTTLMillis = d.UI.StatusTTLMillis
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ulm configuration directory.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ulm"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ulm"), nil
}

// DataDir returns the directory holding the index database and metadata.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ulm"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "ulm"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// legacyConfigPath is where releases before the XDG layout kept the file.
func legacyConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ulm", "config.toml"), nil
}

// IndexPath returns the configured index database path, or the default
// location under DataDir.
func (c *Config) IndexPath() (string, error) {
	if c.Index.Path != "" {
		return c.Index.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "index.db"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files may hold an API key and must be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default location.
// A missing file yields defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if legacy, lerr := legacyConfigPath(); lerr == nil {
			if _, err := os.Stat(legacy); err == nil {
				return migrateLegacyFile(legacy, path)
			}
		}
	}

	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file.
// A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if cfg.Migrate() {
		cfg.SetDefaults()
		if err := SaveTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to save migrated config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadTOML decodes path into cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// migrateLegacyFile loads the legacy file and writes it to the new location.
func migrateLegacyFile(legacy, path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, legacy); err != nil {
		return nil, err
	}
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid legacy config: %w", err)
	}
	if err := SaveTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to save migrated config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# ulm configuration file\n")
	sb.WriteString("# Generated by ulm - edit with care\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, []byte(sb.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Ollama.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", c.Ollama.URL),
		})
	}
	if c.Ollama.GenerateTimeoutSec < 0 || c.Ollama.EmbedTimeoutSec < 0 {
		errs = append(errs, ValidationError{Field: "ollama", Message: "timeouts must not be negative"})
	}
	if c.Ollama.MaxRetries < 1 || c.Ollama.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "ollama.max_retries",
			Message: fmt.Sprintf("must be 1-10, got %d", c.Ollama.MaxRetries),
		})
	}

	switch c.Backend.Provider {
	case "ollama", "openai":
	default:
		errs = append(errs, ValidationError{
			Field:   "backend.provider",
			Message: fmt.Sprintf("must be \"ollama\" or \"openai\", got %q", c.Backend.Provider),
		})
	}

	// Zero means unset and is replaced by the default, so it is not a valid
	// explicit value.
	if c.Query.SimilarityThreshold <= 0 || c.Query.SimilarityThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "query.similarity_threshold",
			Message: fmt.Sprintf("must be greater than 0 and at most 1, got %g", c.Query.SimilarityThreshold),
		})
	}
	if c.Query.SearchLimit < 1 {
		errs = append(errs, ValidationError{Field: "query.search_limit", Message: "must be at least 1"})
	}
	if c.Query.ReferenceCharBudget < 500 {
		errs = append(errs, ValidationError{Field: "query.reference_char_budget", Message: "must be at least 500"})
	}
	if c.Query.TokenBudget < 1000 {
		errs = append(errs, ValidationError{Field: "query.token_budget", Message: "must be at least 1000"})
	}
	if c.Index.Workers < 1 || c.Index.Workers > 32 {
		errs = append(errs, ValidationError{
			Field:   "index.workers",
			Message: fmt.Sprintf("must be 1-32, got %d", c.Index.Workers),
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("must be debug, info, warn or error, got %q", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Migrate moves legacy top-level keys into their sections.
// It reports whether anything changed.
func (c *Config) Migrate() bool {
	migrated := false
	if c.LegacyModelName != "" {
		// The legacy layout used one model for everything.
		c.Models.EmbeddingModel = c.LegacyModelName
		c.Models.LLMModel = c.LegacyModelName
		c.LegacyModelName = ""
		migrated = true
	}
	if c.LegacyOllamaURL != "" {
		c.Ollama.URL = c.LegacyOllamaURL
		c.LegacyOllamaURL = ""
		migrated = true
	}
	return migrated
}

// =============================================================================
// INDEX STATE
// =============================================================================

// UpdateIndexMetadata records the dimension produced by the active embedding model.
func (c *Config) UpdateIndexMetadata(dimension int) {
	c.Index.EmbeddingDimension = dimension
	c.Index.LastEmbeddingModel = c.Models.EmbeddingModel
}

// NeedsIndexRebuild reports whether the index was built with another
// embedding model. A config with no recorded model never needs a rebuild.
func (c *Config) NeedsIndexRebuild() bool {
	return c.Index.LastEmbeddingModel != "" && c.Index.LastEmbeddingModel != c.Models.EmbeddingModel
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// GenerateTimeout returns the generation request timeout.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.Ollama.GenerateTimeoutSec) * time.Second
}

// EmbedTimeout returns the embedding request timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.Ollama.EmbedTimeoutSec) * time.Second
}

// StatusTTL returns how long selector status messages stay visible.
func (c *Config) StatusTTL() time.Duration {
	return time.Duration(c.UI.StatusTTLMillis) * time.Millisecond
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ULM_OLLAMA_URL: overrides ollama.url
//   - ULM_LLM_MODEL: overrides models.llm_model
//   - ULM_EMBEDDING_MODEL: overrides models.embedding_model
//   - ULM_LOG_LEVEL: overrides log.level
//   - ULM_LOG_FILE: overrides log.file
//   - ULM_OPENAI_API_KEY: overrides backend.openai_api_key
//   - ULM_HANDOFF: "1" or "true" enables ui.handoff
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ULM_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("ULM_LLM_MODEL"); v != "" {
		c.Models.LLMModel = v
	}
	if v := os.Getenv("ULM_EMBEDDING_MODEL"); v != "" {
		c.Models.EmbeddingModel = v
	}
	if v := os.Getenv("ULM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ULM_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("ULM_OPENAI_API_KEY"); v != "" {
		c.Backend.OpenAIAPIKey = v
	}
	if v := os.Getenv("ULM_HANDOFF"); v != "" {
		c.UI.Handoff = v == "1" || strings.EqualFold(v, "true")
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "query.search_limit").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("%s is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag name is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name && !strings.HasPrefix(t.Field(i).Name, "Legacy") {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		if section.Type.Kind() != reflect.Struct {
			continue
		}
		prefix := strings.Split(section.Tag.Get("toml"), ",")[0]
		for j := 0; j < section.Type.NumField(); j++ {
			name := strings.Split(section.Type.Field(j).Tag.Get("toml"), ",")[0]
			keys = append(keys, prefix+"."+name)
		}
	}
	return keys
}

// =============================================================================
// DISPLAY
// =============================================================================

// String renders the config as TOML with secrets redacted.
func (c *Config) String() string {
	safe := *c
	if safe.Backend.OpenAIAPIKey != "" {
		safe.Backend.OpenAIAPIKey = "[REDACTED]"
	}
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(&safe); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return sb.String()
}
