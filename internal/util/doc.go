// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across ulm.
//
//   - AtomicWriteFileWithDir: Crash-safe file writing with fsync, used for the
//     config file and the index metadata
//   - TruncateRunes, TruncateWidth, StringWidth: UTF-8 and display-width
//     aware string helpers used by the selector and the prompt composer
package util
