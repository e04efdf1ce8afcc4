// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for ulm.
//
// Command: config [subcommand]
//
// Subcommands:
//   show                Print the config file values (API key redacted)
//   path                Print the config file location
//   get <key>           Print one value, e.g. query.search_limit
//   set <key> <value>   Validate and store one value
//   keys                List every settable key
//
// These commands read the file as written, without ULM_* environment
// overrides, so a broken config can still be inspected and repaired.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ulm/internal/config"
	"github.com/jeranaias/ulm/internal/model"
)

func (a *App) configCommand() *cobra.Command {
	raw := map[string]string{rawConfig: "true"}
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Show or change configuration values",
		Annotations: raw,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:         "show",
			Short:       "Print the configuration",
			Args:        cobra.NoArgs,
			Annotations: raw,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := a.loadRawConfig()
				if err != nil {
					return err
				}
				fmt.Fprint(a.Stdout, cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:         "path",
			Short:       "Print the config file location",
			Args:        cobra.NoArgs,
			Annotations: raw,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.configFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.Stdout, path)
				return nil
			},
		},
		&cobra.Command{
			Use:         "get <key>",
			Short:       "Print one configuration value",
			Example:     "  ulm config get query.similarity_threshold",
			Args:        exactArgs(1, "ulm config get query.search_limit"),
			Annotations: raw,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := a.loadRawConfig()
				if err != nil {
					return err
				}
				v, err := cfg.Get(args[0])
				if err != nil {
					return &UsageError{Reason: err.Error(), Example: "ulm config keys"}
				}
				if args[0] == "backend.openai_api_key" && v != "" {
					v = "[REDACTED]"
				}
				fmt.Fprintln(a.Stdout, v)
				return nil
			},
		},
		&cobra.Command{
			Use:         "set <key> <value>",
			Short:       "Validate and store one configuration value",
			Example:     "  ulm config set models.llm_model mistral:7b",
			Args:        exactArgs(2, "ulm config set query.search_limit 5"),
			Annotations: raw,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, path, err := a.loadRawConfig()
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return &UsageError{Reason: err.Error(), Example: "ulm config keys"}
				}
				if err := saveConfig(cfg, path); err != nil {
					return err
				}
				fmt.Fprintf(a.Stdout, "%s %s = %s\n", RenderStatus("ok"), args[0], args[1])
				if strings.HasPrefix(args[0], "models.embedding_model") && cfg.NeedsIndexRebuild() {
					fmt.Fprintln(a.Stdout, WarningStyle.Render("The index was built with another embedding model; run 'ulm update --rebuild'"))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:         "keys",
			Short:       "List every settable key",
			Args:        cobra.NoArgs,
			Annotations: raw,
			Run: func(cmd *cobra.Command, args []string) {
				for _, k := range config.Keys() {
					fmt.Fprintln(a.Stdout, k)
				}
			},
		},
	)
	return cmd
}

// saveConfig validates cfg and writes it to path.
func saveConfig(cfg *config.Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return model.Configuration("cannot save "+path, err)
	}
	return nil
}

// exactArgs is cobra.ExactArgs with a usage example in the error.
func exactArgs(n int, example string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &UsageError{
				Reason:  fmt.Sprintf("%s takes %d argument(s), got %d", cmd.CommandPath(), n, len(args)),
				Example: example,
			}
		}
		return nil
	}
}
