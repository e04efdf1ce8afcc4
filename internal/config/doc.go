// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ulm.
//
// The file is TOML, stored with 0600 permissions, and may be overridden
// per invocation with ULM_* environment variables.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	threshold := cfg.Query.SimilarityThreshold
//
// Modify and persist:
//
//	_ = cfg.Set("models.llm_model", "mistral:7b")
//	_ = config.Save(cfg)
package config
