// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package action

import (
	"github.com/atotto/clipboard"

	"github.com/jeranaias/ulm/internal/model"
)

// SystemClipboard writes to the OS clipboard via atotto/clipboard.
// On Linux this needs xclip, xsel or wl-copy on PATH.
type SystemClipboard struct{}

// WriteAll copies text. Failures are Clipboard errors.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return model.Clipboard(nil)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return model.Clipboard(err)
	}
	return nil
}

// Available reports whether a clipboard backend was found.
func (SystemClipboard) Available() bool {
	return !clipboard.Unsupported
}
