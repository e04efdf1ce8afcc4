// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ollama"
)

// =============================================================================
// MODEL RECOMMENDATION
// =============================================================================

// ModelTier pairs a generation model with the memory it needs.
type ModelTier struct {
	Name     string
	MinRAMGB float64
	Note     string
}

// ModelTiers is ordered from largest to smallest.
var ModelTiers = []ModelTier{
	{Name: "llama3.1:8b", MinRAMGB: 8, Note: "best suggestions"},
	{Name: "mistral:7b", MinRAMGB: 6, Note: "balanced"},
	{Name: "llama3.2:3b", MinRAMGB: 4, Note: "fast"},
	{Name: "phi3:mini", MinRAMGB: 0, Note: "low memory"},
}

// RecommendModel picks the largest generation model that fits in ramGB.
// A non-positive value means the amount is unknown and yields the default
// model.
func RecommendModel(ramGB float64) string {
	if ramGB <= 0 {
		return "llama3.2:3b"
	}
	for _, tier := range ModelTiers {
		if ramGB >= tier.MinRAMGB {
			return tier.Name
		}
	}
	return ModelTiers[len(ModelTiers)-1].Name
}

// SystemRAMGB reports total physical memory in GiB, or 0 if it cannot be
// determined on this platform.
func SystemRAMGB() float64 {
	b, err := totalMemoryBytes()
	if err != nil || b == 0 {
		return 0
	}
	return float64(b) / (1 << 30)
}

// =============================================================================
// MODEL MANAGER
// =============================================================================

// PullProgress is one progress update from a model download.
type PullProgress struct {
	Status    string
	Digest    string
	Total     int64
	Completed int64
	Percent   float64
}

// ModelManager lists and downloads models on the Ollama server.
type ModelManager struct {
	client  *api.Client
	baseURL string
	log     *zap.Logger
}

// NewModelManager connects to the Ollama server at serverURL.
func NewModelManager(serverURL string, log *zap.Logger) (*ModelManager, error) {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, model.Configuration(fmt.Sprintf("invalid Ollama URL %q", serverURL), err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	// No client timeout: pulls can take many minutes. List calls are bounded
	// by their context.
	return &ModelManager{
		client:  api.NewClient(baseURL, &http.Client{}),
		baseURL: serverURL,
		log:     log,
	}, nil
}

// Installed returns the names of installed models.
func (m *ModelManager) Installed(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := m.client.List(ctx)
	if err != nil {
		return nil, model.Connectivity("cannot reach Ollama at "+m.baseURL, err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, mod := range resp.Models {
		names = append(names, mod.Name)
	}
	return names, nil
}

// HasModel reports whether name is installed. A missing ":tag" matches
// ":latest".
func (m *ModelManager) HasModel(ctx context.Context, name string) (bool, error) {
	names, err := m.Installed(ctx)
	if err != nil {
		return false, err
	}
	return containsModel(names, name), nil
}

// Missing returns the entries of wanted that are not installed, in order.
func (m *ModelManager) Missing(ctx context.Context, wanted ...string) ([]string, error) {
	names, err := m.Installed(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, w := range wanted {
		if !containsModel(names, w) {
			missing = append(missing, w)
		}
	}
	return missing, nil
}

// Pull downloads name, reporting progress to fn when it is non-nil.
func (m *ModelManager) Pull(ctx context.Context, name string, fn func(PullProgress)) error {
	m.log.Info("pulling model", zap.String("model", name))
	err := m.client.Pull(ctx, &api.PullRequest{Model: name}, func(resp api.ProgressResponse) error {
		if fn != nil {
			var percent float64
			if resp.Total > 0 {
				percent = float64(resp.Completed) / float64(resp.Total) * 100
			}
			fn(PullProgress{
				Status:    resp.Status,
				Digest:    resp.Digest,
				Total:     resp.Total,
				Completed: resp.Completed,
				Percent:   percent,
			})
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return model.Connectivity(fmt.Sprintf("failed to pull %s", name), err)
	}
	return nil
}

func containsModel(names []string, name string) bool {
	for _, n := range names {
		if ollama.SameModel(n, name) {
			return true
		}
	}
	return false
}
