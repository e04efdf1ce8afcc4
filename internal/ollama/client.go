// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeServer
	ErrTypeRejected
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434)
	BaseURL string

	// GenerateTimeout bounds a whole Generate call, retries included (default: 60s)
	GenerateTimeout time.Duration

	// EmbedTimeout bounds a whole Embed call, retries included (default: 30s)
	EmbedTimeout time.Duration

	// TagsTimeout bounds version and model listing calls (default: 5s)
	TagsTimeout time.Duration

	// MaxRetries is the number of attempts for transient failures (default: 3)
	MaxRetries int

	// RetryDelay is the first backoff interval; it doubles per attempt (default: 250ms)
	RetryDelay time.Duration

	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:         "http://localhost:11434",
		GenerateTimeout: 60 * time.Second,
		EmbedTimeout:    30 * time.Second,
		TagsTimeout:     5 * time.Second,
		MaxRetries:      3,
		RetryDelay:      250 * time.Millisecond,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
//
// The Client is safe for concurrent use.
//
// Example:
//
//	client := ollama.NewClient()
//	vec, err := client.Embed(ctx, "nomic-embed-text", "find large files")
//	raw, err := client.Generate(ctx, "llama3.2:3b", prompt)
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()

	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.GenerateTimeout == 0 {
		config.GenerateTimeout = defaults.GenerateTimeout
	}
	if config.EmbedTimeout == 0 {
		config.EmbedTimeout = defaults.EmbedTimeout
	}
	if config.TagsTimeout == 0 {
		config.TagsTimeout = defaults.TagsTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		config: config,
		// Timeouts are applied per call through the context.
		httpClient: &http.Client{},
		log:        log,
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Version returns the server version. It doubles as a health check.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.TagsTimeout)
	defer cancel()

	var result VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

// CheckRunning verifies that Ollama is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	_, err := c.Version(ctx)
	return err
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.TagsTimeout)
	defer cancel()

	var result ListModelsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// HasModel reports whether model is installed.
func (c *Client) HasModel(ctx context.Context, model string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if SameModel(m.Name, model) {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate sends prompt to /api/generate with JSON output mode and returns
// the raw response text. Transient failures are retried with exponential
// backoff; the whole call is bounded by GenerateTimeout.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.GenerateTimeout)
	defer cancel()

	reqBody := GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	}

	start := time.Now()
	resp, err := retry(ctx, c, "generate", func(ctx context.Context) (*GenerateResponse, error) {
		var result GenerateResponse
		if err := c.do(ctx, http.MethodPost, "/api/generate", reqBody, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return "", err
	}

	c.log.Debug("generate completed",
		zap.String("model", model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", resp.PromptEvalCount),
		zap.Int("eval_tokens", resp.EvalCount))

	return resp.Response, nil
}

// =============================================================================
// EMBEDDINGS
// =============================================================================

// Embed creates an embedding vector for text.
// Transient failures are retried; the call is bounded by EmbedTimeout.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.EmbedTimeout)
	defer cancel()

	reqBody := EmbeddingRequest{
		Model:  model,
		Prompt: text,
	}

	vec, err := retry(ctx, c, "embed", func(ctx context.Context) ([]float64, error) {
		var result EmbeddingResponse
		if err := c.do(ctx, http.MethodPost, "/api/embeddings", reqBody, &result); err != nil {
			return nil, err
		}
		if len(result.Embedding) == 0 {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "empty embedding returned for model " + model}
		}
		return result.Embedding, nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do performs one request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// transportError classifies a failed http.Client.Do.
func (c *Client) transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request to Ollama timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request to Ollama timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ClientError{Type: ErrTypeConnection, Message: "request cancelled", Cause: err}
	}
	return &ClientError{
		Type:    ErrTypeNotRunning,
		Message: fmt.Sprintf("cannot connect to Ollama at %s", c.config.BaseURL),
		Cause:   err,
	}
}

// statusError converts a non-200 response into a ClientError.
func statusError(resp *http.Response) error {
	var ollamaErr OllamaError
	msg := ""
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ollamaErr); err == nil {
		msg = ollamaErr.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if msg == "" {
			return ErrModelNotFound
		}
		return &ClientError{Type: ErrTypeModelNotFound, Message: msg}
	case resp.StatusCode >= 500:
		if msg == "" {
			msg = "Ollama server error: " + resp.Status
		}
		return &ClientError{Type: ErrTypeServer, Message: msg}
	case resp.StatusCode >= 400:
		if msg == "" {
			msg = "Ollama rejected the request: " + resp.Status
		}
		return &ClientError{Type: ErrTypeRejected, Message: msg}
	default:
		if msg == "" {
			msg = "unexpected status from Ollama: " + resp.Status
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return hasType(err, ErrTypeModelNotFound)
}

// IsNotRunning checks if an error indicates Ollama is not reachable.
func IsNotRunning(err error) bool {
	return hasType(err, ErrTypeNotRunning)
}

// IsRejected reports a 4xx answer other than a missing model.
func IsRejected(err error) bool {
	return hasType(err, ErrTypeRejected)
}

// IsInvalidResponse reports an answer that could not be decoded.
func IsInvalidResponse(err error) bool {
	return hasType(err, ErrTypeInvalidResponse)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

func hasType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// Helper to drain response body so the connection can be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
