// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ollama"
)

// Ollama adapts ollama.Client to Backend.
type Ollama struct {
	client         *ollama.Client
	embeddingModel string
	llmModel       string
}

// NewOllama returns a Backend using embeddingModel and llmModel on client.
func NewOllama(client *ollama.Client, embeddingModel, llmModel string) *Ollama {
	return &Ollama{
		client:         client,
		embeddingModel: embeddingModel,
		llmModel:       llmModel,
	}
}

// Name implements Backend.
func (o *Ollama) Name() string {
	return "ollama (" + o.client.BaseURL() + ")"
}

// Client exposes the underlying HTTP client for health checks.
func (o *Ollama) Client() *ollama.Client {
	return o.client
}

// Embed implements Embedder.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.client.Embed(ctx, o.embeddingModel, text)
	if err != nil {
		return nil, fromOllama(err, o.embeddingModel)
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}

// Generate implements Generator.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := o.client.Generate(ctx, o.llmModel, prompt)
	if err != nil {
		return "", fromOllama(err, o.llmModel)
	}
	return raw, nil
}

// fromOllama maps a client error onto the application error kinds.
func fromOllama(err error, modelName string) error {
	switch {
	case ollama.IsModelNotFound(err):
		return model.Configuration(fmt.Sprintf("model %q is not installed", modelName), err)
	case ollama.IsRejected(err):
		return model.Configuration(fmt.Sprintf("Ollama rejected the request for model %q", modelName), err)
	case ollama.IsInvalidResponse(err):
		return model.MalformedResponse("", err)
	case ollama.IsTimeout(err):
		return model.Connectivity("Ollama did not answer in time", err)
	default:
		return model.Connectivity("Ollama request failed", err)
	}
}
