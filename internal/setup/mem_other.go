// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !linux && !darwin

package setup

import "errors"

func totalMemoryBytes() (uint64, error) {
	return 0, errors.New("memory detection not supported on this platform")
}
