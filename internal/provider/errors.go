// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package provider holds the vocabulary shared by identity provider
// adapters: the auth/* rejection codes and their user-facing messages.
package provider

import "github.com/holomush/holosession/internal/session"

// Rejection codes reported by identity providers.
const (
	CodeInvalidEmail      = "auth/invalid-email"
	CodeMissingEmail      = "auth/missing-email"
	CodeMissingPassword   = "auth/missing-password"
	CodeWeakPassword      = "auth/weak-password"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeWrongPassword     = "auth/wrong-password"
	CodeUserNotFound      = "auth/user-not-found"
	CodeUserDisabled      = "auth/user-disabled"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeInvalidActionCode = "auth/invalid-action-code"
	CodeExpiredActionCode = "auth/expired-action-code"
	CodeInvalidUserToken  = "auth/invalid-user-token"
	CodeUserTokenExpired  = "auth/user-token-expired"
	CodeNetworkFailed     = "auth/network-request-failed"
	CodeOperationDisabled = "auth/operation-not-allowed"
	CodeInvalidAPIKey     = "auth/invalid-api-key"
	CodeInternalError     = "auth/internal-error"
)

// MinPasswordLength is the shortest password identity providers accept.
// Clients usually enforce a stricter rule before calling the provider.
const MinPasswordLength = 6

var messages = map[string]string{
	CodeInvalidEmail:      "The email address is badly formatted.",
	CodeMissingEmail:      "An email address is required.",
	CodeMissingPassword:   "A password is required.",
	CodeWeakPassword:      "Password should be at least 6 characters.",
	CodeEmailInUse:        "The email address is already in use by another account.",
	CodeInvalidCredential: "Invalid email or password.",
	CodeWrongPassword:     "The password is invalid.",
	CodeUserNotFound:      "There is no account for this email address.",
	CodeUserDisabled:      "This account has been disabled.",
	CodeTooManyRequests:   "Access to this account has been temporarily disabled due to many failed login attempts. Try again later.",
	CodeInvalidActionCode: "The reset code is invalid or has already been used.",
	CodeExpiredActionCode: "The reset code has expired.",
	CodeInvalidUserToken:  "Your session is no longer valid. Sign in again.",
	CodeUserTokenExpired:  "Your session has expired. Sign in again.",
	CodeNetworkFailed:     "A network error occurred. Check your connection and try again.",
	CodeOperationDisabled: "This sign-in method is not enabled.",
	CodeInvalidAPIKey:     "The API key is not valid.",
	CodeInternalError:     "An internal error occurred.",
}

// Message returns the user-facing message for code, or "" if unknown.
func Message(code string) string {
	return messages[code]
}

// Reject returns the ProviderError for code with its standard message.
func Reject(code string) *session.ProviderError {
	return session.NewProviderError(code, Message(code))
}

// RejectWithCause is Reject with an underlying transport or storage error.
func RejectWithCause(code string, cause error) *session.ProviderError {
	return &session.ProviderError{Code: code, Message: Message(code), Err: cause}
}
