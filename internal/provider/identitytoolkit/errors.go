// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytoolkit

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/holosession/internal/provider"
	"github.com/holomush/holosession/internal/session"
)

// restCodes maps REST error identifiers to provider codes.
var restCodes = map[string]string{
	"INVALID_LOGIN_CREDENTIALS":   provider.CodeInvalidCredential,
	"INVALID_PASSWORD":            provider.CodeWrongPassword,
	"EMAIL_NOT_FOUND":             provider.CodeUserNotFound,
	"USER_DISABLED":               provider.CodeUserDisabled,
	"EMAIL_EXISTS":                provider.CodeEmailInUse,
	"INVALID_EMAIL":               provider.CodeInvalidEmail,
	"MISSING_EMAIL":               provider.CodeMissingEmail,
	"MISSING_PASSWORD":            provider.CodeMissingPassword,
	"WEAK_PASSWORD":               provider.CodeWeakPassword,
	"TOO_MANY_ATTEMPTS_TRY_LATER": provider.CodeTooManyRequests,
	"OPERATION_NOT_ALLOWED":       provider.CodeOperationDisabled,
	"PASSWORD_LOGIN_DISABLED":     provider.CodeOperationDisabled,
	"INVALID_REFRESH_TOKEN":       provider.CodeInvalidUserToken,
	"INVALID_GRANT_TYPE":          provider.CodeInvalidUserToken,
	"MISSING_REFRESH_TOKEN":       provider.CodeInvalidUserToken,
	"USER_NOT_FOUND":              provider.CodeInvalidUserToken,
	"TOKEN_EXPIRED":               provider.CodeUserTokenExpired,
	"API_KEY_INVALID":             provider.CodeInvalidAPIKey,
	"INVALID_API_KEY":             provider.CodeInvalidAPIKey,
}

// apiError is the JSON error envelope shared by both APIs.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// decodeError turns a non-200 response into a ProviderError.
//
// Messages look like "EMAIL_EXISTS" or "WEAK_PASSWORD : Password should be
// at least 6 characters"; the part before " : " selects the code and the
// remainder, when present, is kept as the message.
func decodeError(status int, body io.Reader) error {
	cause := oops.Code("IDENTITYTOOLKIT_HTTP_ERROR").With("status", status)

	var env apiError
	if err := json.NewDecoder(body).Decode(&env); err != nil || env.Error.Message == "" {
		code := provider.CodeInternalError
		if status == http.StatusTooManyRequests {
			code = provider.CodeTooManyRequests
		}
		return provider.RejectWithCause(code, cause.Errorf("unexpected response"))
	}

	ident, detail, _ := strings.Cut(env.Error.Message, " : ")
	ident = strings.TrimSpace(ident)
	cause = cause.With("rest_code", ident)

	code, ok := restCodes[ident]
	if !ok {
		code = provider.CodeInternalError
		if strings.HasPrefix(ident, "API key not valid") {
			code = provider.CodeInvalidAPIKey
		}
	}
	rej := provider.RejectWithCause(code, cause.Errorf("%s", env.Error.Message))
	if detail = strings.TrimSpace(detail); detail != "" && code != provider.CodeInternalError {
		rej.Message = detail
	}
	return rej
}

// isTransient reports whether retrying the same request may succeed.
func isTransient(err error) bool {
	var provErr *session.ProviderError
	if !errors.As(err, &provErr) {
		return false
	}
	switch provErr.Code {
	case provider.CodeNetworkFailed, provider.CodeInternalError:
		return true
	}
	return false
}

// isRejectedSession reports whether err means the saved refresh token can
// never be used again.
func isRejectedSession(err error) bool {
	var provErr *session.ProviderError
	if !errors.As(err, &provErr) {
		return false
	}
	switch provErr.Code {
	case provider.CodeInvalidUserToken, provider.CodeUserTokenExpired,
		provider.CodeUserDisabled, provider.CodeUserNotFound:
		return true
	}
	return false
}
