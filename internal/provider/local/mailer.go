// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package local

import (
	"context"
	"log/slog"
	"time"
)

// Mailer delivers password reset codes.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, code string, expiresAt time.Time) error
}

// LogMailer writes reset codes to a logger instead of sending mail.
// Intended for development and self-hosted setups without SMTP.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default().
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendPasswordReset implements Mailer.
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.logger.InfoContext(ctx, "password reset code issued",
		"email", email,
		"reset_code", code,
		"expires_at", expiresAt.UTC().Format(time.RFC3339),
	)
	return nil
}
