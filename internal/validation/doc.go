// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package validation decides whether a candidate email or password may be
// submitted to the identity provider.
//
// # Credential rules
//
//   - IsValidEmail - syntactic heuristic (local part, '@', dotted domain)
//   - ValidatePasswordStrength - length first, then letter/digit composition
//
// Both are pure and total. The email check is intentionally permissive: it
// rejects some legal addresses and accepts some that SMTP would refuse. Callers
// and tests rely on the exact accept/reject boundary, so it must not be
// tightened.
//
// # Form checks
//
// CheckLogin, CheckSignup and CheckPasswordReset combine the rules into the
// pre-flight checks a form runs before calling the session controller. They
// return errors carrying VALIDATION_* codes; a non-nil result means no remote
// call should be issued.
package validation
