// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/luan-services/contactsd/internal/auth"
)

// LogDispatcher writes messages to the log instead of sending them.
// Bodies, and so the raw challenge tokens, are only logged at DEBUG.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a LogDispatcher. A nil logger uses slog.Default.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Send logs msg and never fails.
func (d *LogDispatcher) Send(ctx context.Context, msg auth.Message) error {
	d.logger.InfoContext(ctx, "mail dispatched", "to", msg.To, "subject", msg.Subject)
	d.logger.DebugContext(ctx, "mail body", "to", msg.To, "body", msg.HTMLBody)
	return nil
}

var _ auth.Mailer = (*LogDispatcher)(nil)
