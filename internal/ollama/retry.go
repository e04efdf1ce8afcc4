// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// retry runs op up to MaxRetries times with exponential backoff.
// Only transient failures (unreachable server, network timeouts, 5xx)
// are retried. The loop stops as soon as ctx is done.
func retry[T any](ctx context.Context, c *Client, name string, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 4 * c.config.RetryDelay

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.config.MaxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug("retrying ollama request",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
	if err != nil && !isClientError(err) {
		// The context expired while waiting between attempts.
		err = &ClientError{Type: ErrTypeTimeout, Message: "request to Ollama timed out", Cause: err}
	}
	return v, err
}

func isClientError(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr)
}

// isTransient reports whether err is worth another attempt.
func isTransient(err error) bool {
	return hasType(err, ErrTypeNotRunning) ||
		hasType(err, ErrTypeTimeout) ||
		hasType(err, ErrTypeServer)
}
