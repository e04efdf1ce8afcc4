// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm abstracts the embedding and generation backends.
//
// The query pipeline only needs two capabilities: turn text into a vector
// and turn a prompt into raw text. Both are interfaces so the pipeline can
// run against Ollama, an OpenAI-compatible server, or a test double.
//
// Backend failures are returned as *model.Error values: unreachable
// servers and timeouts become KindConnectivity, a missing model or any
// other rejected request becomes KindConfiguration, and an answer that
// cannot be decoded becomes KindMalformedResponse.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/config"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ollama"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator turns a prompt into raw model output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Backend bundles both capabilities.
type Backend interface {
	Embedder
	Generator

	// Name identifies the backend in logs and doctor output.
	Name() string
}

// Provider names accepted in the [backend] config section.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// New builds the backend selected by cfg.Backend.Provider.
func New(cfg *config.Config, log *zap.Logger) (Backend, error) {
	switch cfg.Backend.Provider {
	case "", ProviderOllama:
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:         cfg.Ollama.URL,
			GenerateTimeout: cfg.GenerateTimeout(),
			EmbedTimeout:    cfg.EmbedTimeout(),
			MaxRetries:      cfg.Ollama.MaxRetries,
			Logger:          log,
		})
		return NewOllama(client, cfg.Models.EmbeddingModel, cfg.Models.LLMModel), nil
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			BaseURL:         cfg.Backend.OpenAIBaseURL,
			APIKey:          cfg.Backend.OpenAIAPIKey,
			EmbeddingModel:  cfg.Models.EmbeddingModel,
			LLMModel:        cfg.Models.LLMModel,
			GenerateTimeout: cfg.GenerateTimeout(),
			EmbedTimeout:    cfg.EmbedTimeout(),
		}), nil
	default:
		return nil, model.Configuration(fmt.Sprintf("unknown backend provider %q", cfg.Backend.Provider), nil)
	}
}
