// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mudlark-mud/mudlark/internal/logging"
	"github.com/mudlark-mud/mudlark/pkg/script"
)

// Connector establishes a profile's transport connection. The real
// network client lives outside this runtime; tests and the demo harness
// supply fakes.
type Connector interface {
	Connect(ctx context.Context) error
}

// maxConnectAttempts bounds reconnection before giving up on a profile.
const maxConnectAttempts = 5

// Connect dials the profile's world with fibonacci backoff, announcing
// the outcome to the profile's subscribers. On success it broadcasts
// ConnectionEstablished; when retries are exhausted it broadcasts
// ConnectionLost with the final error as payload.
func Connect(ctx context.Context, profile string, c Connector, b *Broadcaster) error {
	ctx = logging.WithProfile(ctx, profile)
	backoff := retry.WithMaxRetries(maxConnectAttempts, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.Connect(ctx); err != nil {
			slog.DebugContext(ctx, "connect attempt failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		b.Broadcast(profile, script.Event{
			Type:    script.EventConnectionLost,
			Payload: err.Error(),
		})
		return err
	}

	b.Broadcast(profile, script.Event{Type: script.EventConnectionEstablished})
	return nil
}
