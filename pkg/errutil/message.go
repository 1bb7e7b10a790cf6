// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import "errors"

// UnknownError is shown when an error carries no message of its own.
const UnknownError = "Unknown error"

// userMessager is implemented by errors that carry a message meant for
// the person at the keyboard.
type userMessager interface {
	UserMessage() string
}

// UserMessage returns the text to display for err.
// Errors in the chain implementing UserMessage() take precedence; otherwise
// the error string is used. Empty messages fall back to UnknownError.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
		return UnknownError
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownError
}
