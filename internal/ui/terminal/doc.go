// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package terminal guards the interactive terminal state.
//
// A Guard snapshots the terminal settings before the selector switches to raw
// mode and puts them back on every exit path: normal return, error return,
// panic, and SIGTERM/SIGHUP while the guard is held.
//
//	guard := terminal.NewGuard(int(os.Stdin.Fd()), log)
//	err := guard.Protect(func() error {
//		action, err = selector.Run(ctx, suggestions, clip, opts)
//		return err
//	})
package terminal
