// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ulm/internal/model"
	"github.com/jeranaias/ulm/internal/ui/selector"
)

// DefaultShell runs executed commands.
const DefaultShell = "sh"

// Restorer gives the terminal back before a child process takes it over.
type Restorer interface {
	Restore() error
}

// Executor performs a UserAction.
type Executor struct {
	Shell string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Clipboard selector.Clipboard
	Editor    LineEditor

	// Terminal, when set, is restored before a command runs.
	Terminal Restorer

	Log *zap.Logger
}

// NewExecutor creates an executor wired to the process stdio, the system
// clipboard and a liner editor.
func NewExecutor(log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		Shell:     DefaultShell,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Clipboard: SystemClipboard{},
		Editor:    LinerEditor{},
		Log:       log,
	}
}

// Run performs action and returns the exit code the CLI should use.
//
// Abort and a cancelled edit return 0. Execute returns the command's exit
// code; err is only set when the shell could not be started.
func (x *Executor) Run(ctx context.Context, action model.UserAction) (int, error) {
	switch action.Kind {
	case model.ActionExecute:
		return x.execute(ctx, action.Command)

	case model.ActionCopy:
		if x.Clipboard == nil {
			return 1, model.Clipboard(nil)
		}
		if err := x.Clipboard.WriteAll(action.Command); err != nil {
			if !model.IsKind(err, model.KindClipboard) {
				err = model.Clipboard(err)
			}
			return 1, err
		}
		fmt.Fprintf(x.stderr(), "Copied to clipboard: %s\n", action.Command)
		return 0, nil

	case model.ActionEdit:
		if x.Editor == nil {
			return x.execute(ctx, action.Command)
		}
		edited, err := x.Editor.Edit(action.Command)
		if errors.Is(err, ErrEditCancelled) {
			x.log().Debug("edit cancelled")
			return 0, nil
		}
		if err != nil {
			return 1, model.Terminal("line editor failed", err)
		}
		return x.execute(ctx, edited)

	default:
		return 0, nil
	}
}

func (x *Executor) execute(ctx context.Context, command string) (int, error) {
	if x.Terminal != nil {
		if err := x.Terminal.Restore(); err != nil {
			return 1, err
		}
	}

	shell := x.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdin = x.Stdin
	cmd.Stdout = x.Stdout
	cmd.Stderr = x.Stderr

	x.log().Info("executing command", zap.String("command", command))
	start := time.Now()

	err := cmd.Run()
	code := exitCode(cmd.ProcessState)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 127, fmt.Errorf("failed to start %s: %w", shell, err)
	}

	x.log().Debug("command completed",
		zap.Int("exit_code", code),
		zap.Duration("elapsed", time.Since(start)))
	return code, nil
}

// exitCode maps a finished process to a shell-style exit code. A process
// killed by a signal reports 128+signal.
func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return 1
	}
	if code := ps.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

func (x *Executor) stderr() io.Writer {
	if x.Stderr == nil {
		return io.Discard
	}
	return x.Stderr
}

func (x *Executor) log() *zap.Logger {
	if x.Log == nil {
		return zap.NewNop()
	}
	return x.Log
}
