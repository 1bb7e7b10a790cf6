// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// coder is implemented by errors that expose a stable machine code
// without being oops errors.
type coder interface {
	ErrorCode() string
}

// Code returns the machine code carried by err, or "".
// An error that exposes ErrorCode() itself wins; otherwise the oops code
// is used, then any ErrorCode() further down the chain.
func Code(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := err.(coder); ok { //nolint:errorlint // outermost error only
		return c.ErrorCode()
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok && code != "" {
			return code
		}
	}
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// Attrs returns the slog attributes describing err: its text, code, oops
// context, and the user-facing message when that differs from the text.
func Attrs(err error) []any {
	attrs := []any{"error", err.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	}
	if msg := UserMessage(err); msg != err.Error() {
		attrs = append(attrs, "user_message", msg)
	}
	return attrs
}

// LogError logs err at error level with the attributes from Attrs
// followed by extra.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	logger.ErrorContext(ctx, msg, append(Attrs(err), extra...)...)
}

// LogWarn is LogError at warn level, for failures the caller recovers from.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	logger.WarnContext(ctx, msg, append(Attrs(err), extra...)...)
}
