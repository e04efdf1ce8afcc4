// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/config"
	"github.com/jeranaias/ulm/internal/llm"
	"github.com/jeranaias/ulm/internal/logging"
	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/suggest"
	"github.com/jeranaias/ulm/internal/telemetry"
	"github.com/jeranaias/ulm/internal/ui/terminal"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rawConfig marks commands that read the config file without validating
// it, so a broken file can still be inspected and fixed.
const rawConfig = "raw-config"

// App holds the process-wide state of one ulm invocation.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// NewBackend builds the inference backend (default llm.New).
	NewBackend func(cfg *config.Config, log *zap.Logger) (llm.Backend, error)

	// Docs overrides the manpage loader used by the pipeline.
	Docs suggest.DocSource

	// Interactive reports whether the selector can take over the terminal
	// (default CanSelect).
	Interactive func() bool

	configPath string
	logFile    string
	trace      bool

	cfg      *config.Config
	log      *zap.Logger
	exitCode int
	cleanups []func()
}

// New returns an App wired to the process stdio.
func New() *App {
	return &App{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		NewBackend:  llm.New,
		Interactive: CanSelect,
		log:         zap.NewNop(),
	}
}

// Execute runs ulm with the process arguments and returns the exit code.
func Execute() int {
	return New().Main(context.Background(), os.Args[1:])
}

// Main runs one command line and returns the exit code.
func (a *App) Main(ctx context.Context, args []string) int {
	defer func() {
		if r := recover(); r != nil {
			_ = terminal.RestoreAll()
			panic(r)
		}
	}()
	defer a.cleanup()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		a.log.Error("command failed", zap.Error(err))
		DisplayError(a.Stderr, err, a.cfg)
		if a.exitCode != 0 {
			return a.exitCode
		}
		return GetExitCode(err)
	}
	return a.exitCode
}

func (a *App) rootCommand() *cobra.Command {
	var printOnly bool

	root := &cobra.Command{
		Use:   "ulm [query]",
		Short: "Suggest shell commands from a plain-English request",
		Long: `ulm turns a plain-English request into shell commands, grounded in the
manpages installed on this machine. Pick a suggestion to run it, copy it,
or edit it first.`,
		Example: `  ulm "find files larger than 100MB"
  ulm --print "compress the logs directory"`,
		Args:              cobra.ArbitraryArgs,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.prepare,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				return &UsageError{Reason: "a query is required", Example: `ulm "find files larger than 100MB"`}
			}
			return a.runQuery(cmd.Context(), q, printOnly)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("ulm version %s (commit %s, built %s)\n", Version, GitCommit, BuildDate))
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error(), Example: cmd.UseLine()}
	})

	root.Flags().BoolVarP(&printOnly, "print", "p", false, "print suggestions as Markdown instead of opening the selector")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/ulm/config.toml)")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write diagnostic logs to this file")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "write pipeline trace spans to stderr")

	root.AddCommand(
		a.setupCommand(),
		a.updateCommand(),
		a.doctorCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{rawConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ulm version %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// prepare loads the configuration and sets up logging and tracing.
func (a *App) prepare(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[rawConfig] != "" {
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logFile := cfg.Log.File
	if a.logFile != "" {
		logFile = a.logFile
	}
	log, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, File: logFile})
	if err != nil {
		return err
	}
	a.log = log
	a.onExit(closeLog)

	if a.trace {
		shutdown, err := telemetry.Setup(a.Stderr)
		if err != nil {
			return err
		}
		a.onExit(func() { _ = shutdown(context.Background()) })
	}

	a.log.Debug("starting",
		zap.String("command", cmd.CommandPath()),
		zap.String("version", Version),
		zap.String("backend", cfg.Backend.Provider))
	return nil
}

// loadConfig loads, migrates and validates the effective configuration.
func (a *App) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, model.Configuration("cannot load configuration", err)
	}
	return cfg, nil
}

// configFile returns the path of the config file in use.
func (a *App) configFile() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPath()
}

// loadRawConfig reads the config file without environment overrides, so
// saving it does not persist values that came from the environment.
func (a *App) loadRawConfig() (*config.Config, string, error) {
	path, err := a.configFile()
	if err != nil {
		return nil, "", err
	}
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return nil, "", model.Configuration("cannot read "+path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", err
	}
	cfg.Migrate()
	cfg.SetDefaults()
	return cfg, path, nil
}

func (a *App) onExit(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

func (a *App) cleanup() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
