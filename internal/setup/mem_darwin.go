// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build darwin

package setup

import "golang.org/x/sys/unix"

func totalMemoryBytes() (uint64, error) {
	return unix.SysctlUint64("hw.memsize")
}
