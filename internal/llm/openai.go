// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jeranaias/ulm/internal/model"
)

// OpenAIConfig configures an OpenAI-compatible backend such as a llama.cpp
// server, vLLM, or LM Studio.
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	EmbeddingModel  string
	LLMModel        string
	GenerateTimeout time.Duration
	EmbedTimeout    time.Duration
}

// OpenAI talks to an OpenAI-compatible /v1 API.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI creates the backend. An empty BaseURL targets api.openai.com.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}

// Name implements Backend.
func (o *OpenAI) Name() string {
	base := o.cfg.BaseURL
	if base == "" {
		base = "api.openai.com"
	}
	return "openai (" + base + ")"
}

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.EmbedTimeout)
		defer cancel()
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fromOpenAI(err, o.cfg.EmbeddingModel)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, model.Connectivity("empty embedding returned for model "+o.cfg.EmbeddingModel, nil)
	}
	return resp.Data[0].Embedding, nil
}

// Generate implements Generator. JSON output mode is requested so the
// answer parses the same way as Ollama's format=json output.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if o.cfg.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.GenerateTimeout)
		defer cancel()
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.LLMModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fromOpenAI(err, o.cfg.LLMModel)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func fromOpenAI(err error, modelName string) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusNotFound:
		return model.Configuration(fmt.Sprintf("model %q is not available", modelName), err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.Configuration("backend rejected the API key", err)
	case status >= 400 && status < 500:
		return model.Configuration(fmt.Sprintf("backend rejected the request for model %q", modelName), err)
	case errors.Is(err, context.DeadlineExceeded):
		return model.Connectivity("backend did not answer in time", err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return model.MalformedResponse("", err)
	}
	return model.Connectivity("backend request failed", err)
}
