// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package validation

import "unicode/utf16"

// MinPasswordLength is the minimum password length, in UTF-16 code units.
const MinPasswordLength = 8

// Password strength reasons. These are the only two reasons
// ValidatePasswordStrength ever reports.
const (
	ReasonTooShort    = "Password must be at least 8 characters."
	ReasonComposition = "Use letters and numbers."
)

// Result is the outcome of a credential check.
// Reason is set if and only if OK is false.
type Result struct {
	OK     bool
	Reason string
}

// ValidatePasswordStrength judges a candidate password.
//
// Length is checked first, so a short password that also lacks digits
// reports ReasonTooShort. Only ASCII letters and digits count toward the
// composition rule.
func ValidatePasswordStrength(candidate string) Result {
	if codeUnitLen(candidate) < MinPasswordLength {
		return Result{OK: false, Reason: ReasonTooShort}
	}

	var hasLetter, hasDigit bool
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return Result{OK: false, Reason: ReasonComposition}
	}

	return Result{OK: true}
}

// codeUnitLen counts UTF-16 code units, matching how the mobile client
// measured password length. Runes outside the BMP count as two; invalid
// UTF-8 bytes decode to U+FFFD and count as one.
func codeUnitLen(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
