// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package action carries out the selector's final decision after the
// interactive menu has exited and the terminal has been restored.
//
// Execute runs the command through "sh -c" with inherited stdio and reports
// its exit code. Copy writes to the system clipboard. Edit opens a line editor
// pre-filled with the command and executes the confirmed line.
package action
