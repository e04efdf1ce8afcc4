// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package ollama

import (
	"context"
	"errors"
	"io"
)

// StartServer is not supported on Windows; start the Ollama app instead.
func (c *Client) StartServer(ctx context.Context, w io.Writer) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}
	return &ClientError{
		Type:    ErrTypeNotRunning,
		Message: "start the Ollama application, then retry",
		Cause:   errors.New("automatic start is not supported on Windows"),
	}
}
