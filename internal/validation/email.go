// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package validation

import (
	"regexp"
	"strings"
)

// emailRegex matches "local@domain.tld" where no part contains whitespace or
// an extra '@'. The excluded class mirrors the ECMAScript \s set: RE2's \s is
// ASCII-only, so vertical tab, the Unicode separators and the BOM are listed
// explicitly.
var emailRegex = regexp.MustCompile(`^[^\s\x0B\p{Z}\x{FEFF}@]+@[^\s\x0B\p{Z}\x{FEFF}@]+\.[^\s\x0B\p{Z}\x{FEFF}@]+$`)

// IsValidEmail reports whether candidate, after trimming surrounding
// whitespace, looks like an email address.
func IsValidEmail(candidate string) bool {
	return emailRegex.MatchString(TrimEmail(candidate))
}

// TrimEmail removes leading and trailing whitespace from an address.
// The session controller uses the same trimming before forwarding an
// address to the provider.
func TrimEmail(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// isSpace reports whether r is whitespace in the ECMAScript sense
// (WhiteSpace and LineTerminator productions).
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}
