// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package validation

import (
	"strings"

	"github.com/samber/oops"
)

// Error codes returned by the form checks.
const (
	CodeInvalidEmail     = "VALIDATION_INVALID_EMAIL"
	CodeEmailRequired    = "VALIDATION_EMAIL_REQUIRED"
	CodePasswordRequired = "VALIDATION_PASSWORD_REQUIRED"
	CodeWeakPassword     = "VALIDATION_WEAK_PASSWORD"
	CodePasswordMismatch = "VALIDATION_PASSWORD_MISMATCH"
)

// User-facing messages for the form checks.
const (
	MsgInvalidEmail     = "Invalid email"
	MsgEmailRequired    = "Enter email above first"
	MsgPasswordRequired = "Enter your password"
	MsgPasswordMismatch = "Passwords do not match"
)

// CheckLogin runs the pre-flight checks of the login form.
func CheckLogin(email, password string) error {
	if !IsValidEmail(email) {
		return oops.Code(CodeInvalidEmail).Errorf(MsgInvalidEmail)
	}
	if password == "" {
		return oops.Code(CodePasswordRequired).Errorf(MsgPasswordRequired)
	}
	return nil
}

// CheckSignup runs the pre-flight checks of the sign-up form: address,
// then strength, then confirmation.
func CheckSignup(email, password, confirm string) error {
	if !IsValidEmail(email) {
		return oops.Code(CodeInvalidEmail).Errorf(MsgInvalidEmail)
	}
	if res := ValidatePasswordStrength(password); !res.OK {
		return oops.Code(CodeWeakPassword).Errorf("%s", res.Reason)
	}
	if password != confirm {
		return oops.Code(CodePasswordMismatch).Errorf(MsgPasswordMismatch)
	}
	return nil
}

// CheckPasswordReset requires an address before a reset is requested.
// The address is not checked for syntax; the provider rejects bad ones.
func CheckPasswordReset(email string) error {
	if TrimEmail(email) == "" {
		return oops.Code(CodeEmailRequired).Errorf(MsgEmailRequired)
	}
	return nil
}

// IsValidationError reports whether err came from one of the form checks.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	code, ok := oopsErr.Code().(string)
	return ok && strings.HasPrefix(code, "VALIDATION_")
}
