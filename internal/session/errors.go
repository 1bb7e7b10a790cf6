// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/holosession/pkg/errutil"
)

// Operation names, used in errors, spans and metrics.
const (
	OpLogin         = "login"
	OpSignup        = "signup"
	OpLogout        = "logout"
	OpResetPassword = "reset_password"
)

// Error codes raised by the controller itself.
const (
	CodeClosed      = "SESSION_CLOSED"
	CodeNotReady    = "SESSION_NOT_READY"
	CodeNilProvider = "SESSION_NIL_PROVIDER"
)

// AuthError reports a failed session operation.
// Message is what the user sees; it is the provider's message verbatim, or
// errutil.UnknownError when the provider supplied none.
type AuthError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Op + ": " + e.Message
}

// Unwrap returns the provider error.
func (e *AuthError) Unwrap() error { return e.Err }

// UserMessage implements the errutil display contract.
func (e *AuthError) UserMessage() string { return e.Message }

// ErrorCode returns Code.
func (e *AuthError) ErrorCode() string { return e.Code }

// ProviderError is returned by providers when the identity service rejects a
// request. Code is a stable machine identifier such as
// "auth/invalid-credential".
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

// NewProviderError creates a ProviderError without an underlying cause.
func NewProviderError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "" && e.Code != "":
		return e.Message + " (" + e.Code + ")"
	case e.Message != "":
		return e.Message
	default:
		return e.Code
	}
}

// Unwrap returns the transport or storage error behind the rejection, if any.
func (e *ProviderError) Unwrap() error { return e.Err }

// ErrorCode returns Code.
func (e *ProviderError) ErrorCode() string { return e.Code }

// UserMessage implements the errutil display contract.
func (e *ProviderError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// IsCode reports whether err carries the given provider or controller code.
func IsCode(err error, code string) bool {
	return errorCode(err) == code
}

func newAuthError(op string, err error) *AuthError {
	return &AuthError{
		Op:      op,
		Code:    errorCode(err),
		Message: errutil.UserMessage(err),
		Err:     err,
	}
}

func errClosed(op string) *AuthError {
	return &AuthError{Op: op, Code: CodeClosed, Message: "session closed"}
}

func errorCode(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}
