// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package terminal

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/jeranaias/ulm/internal/model"
)

// Ops is the subset of golang.org/x/term the guard relies on.
type Ops interface {
	IsTerminal(fd int) bool
	GetState(fd int) (*term.State, error)
	Restore(fd int, state *term.State) error
}

type sysOps struct{}

func (sysOps) IsTerminal(fd int) bool                  { return term.IsTerminal(fd) }
func (sysOps) GetState(fd int) (*term.State, error)    { return term.GetState(fd) }
func (sysOps) Restore(fd int, state *term.State) error { return term.Restore(fd, state) }

// =============================================================================
// GUARD
// =============================================================================

// Guard owns a snapshot of a terminal's settings.
// It is safe for concurrent use; Restore may race with a signal handler.
type Guard struct {
	fd   int
	ops  Ops
	log  *zap.Logger
	exit func(code int)

	mu     sync.Mutex
	state  *term.State
	active bool
}

// NewGuard creates a guard for the terminal on fd (normally stdin).
func NewGuard(fd int, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{
		fd:   fd,
		ops:  sysOps{},
		log:  log,
		exit: os.Exit,
	}
}

// Acquire records the current terminal settings and registers the guard with
// the process-wide restore list. Acquiring an active guard is a no-op.
func (g *Guard) Acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return nil
	}
	if !g.ops.IsTerminal(g.fd) {
		return model.Terminal("standard input is not a terminal", nil)
	}
	state, err := g.ops.GetState(g.fd)
	if err != nil {
		return model.Terminal("cannot read terminal settings", err)
	}

	g.state = state
	g.active = true
	register(g)
	g.log.Debug("terminal state saved", zap.Int("fd", g.fd))
	return nil
}

// Restore puts the saved settings back. It is idempotent.
func (g *Guard) Restore() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return nil
	}
	g.active = false
	unregister(g)

	if err := g.ops.Restore(g.fd, g.state); err != nil {
		g.log.Warn("terminal restore failed", zap.Error(err))
		return model.Terminal("cannot restore terminal settings", err)
	}
	g.log.Debug("terminal state restored", zap.Int("fd", g.fd))
	return nil
}

// Active reports whether the guard holds a snapshot that has not been
// restored yet.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Protect runs fn between Acquire and Restore.
//
// The terminal is restored before Protect returns, before a panic in fn
// continues unwinding, and before the process exits on SIGTERM or SIGHUP.
// An error from fn takes precedence over a restore error.
func (g *Guard) Protect(fn func() error) (err error) {
	if err := g.Acquire(); err != nil {
		return err
	}

	stop := g.watchSignals()
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			if rerr := g.Restore(); rerr != nil {
				g.log.Error("terminal restore after panic failed", zap.Error(rerr))
			}
			panic(r)
		}
	}()

	err = fn()
	if rerr := g.Restore(); rerr != nil {
		if err == nil {
			return rerr
		}
		return errors.Join(err, rerr)
	}
	return err
}

// watchSignals restores the terminal and exits when a termination signal
// arrives while fn runs. The returned func stops the watcher.
func (g *Guard) watchSignals() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			g.log.Info("terminating on signal", zap.String("signal", sig.String()))
			_ = g.Restore()
			code := 1
			if s, ok := sig.(syscall.Signal); ok {
				code = 128 + int(s)
			}
			g.exit(code)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}

// =============================================================================
// PROCESS-WIDE RESTORE
// =============================================================================

var (
	activeMu sync.Mutex
	active   = map[*Guard]struct{}{}
)

func register(g *Guard) {
	activeMu.Lock()
	active[g] = struct{}{}
	activeMu.Unlock()
}

func unregister(g *Guard) {
	activeMu.Lock()
	delete(active, g)
	activeMu.Unlock()
}

// RestoreAll restores every guard that is still active. The CLI calls it from
// its top-level recover so a panic outside Protect still leaves a usable
// terminal.
func RestoreAll() error {
	activeMu.Lock()
	guards := make([]*Guard, 0, len(active))
	for g := range active {
		guards = append(guards, g)
	}
	activeMu.Unlock()

	var errs []error
	for _, g := range guards {
		if err := g.Restore(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
