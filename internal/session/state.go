// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import "context"

// Identity is an opaque handle to an authenticated principal, owned by the
// provider. The controller stores it by reference and never inspects it
// beyond UID.
type Identity interface {
	UID() string
}

// Status summarizes a State for display and metrics.
type Status string

// Session statuses.
const (
	StatusUnknown         Status = "unknown"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// State is the session state observed by the presentation layer.
type State struct {
	// Identity is the current principal; nil when nobody is signed in.
	Identity Identity
	// Initializing is true until the provider reports the initial state.
	Initializing bool
}

// Status reports StatusUnknown while initializing, otherwise whether an
// identity is present.
func (s State) Status() Status {
	switch {
	case s.Initializing:
		return StatusUnknown
	case s.Identity != nil:
		return StatusAuthenticated
	default:
		return StatusUnauthenticated
	}
}

// UID returns the identity's UID, or "" when no identity is present.
func (s State) UID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UID()
}

// Provider is the identity service capability set the controller consumes.
//
// SubscribeToAuthChanges registers onChange and returns a function that
// cancels the registration. Providers invoke onChange at least once after
// subscription with the initial identity (nil for none), and again on every
// sign-in, sign-out, or session restoration. onChange may be invoked
// synchronously from within SubscribeToAuthChanges or from any goroutine.
//
// The remaining methods return nil on success. They must not be relied upon
// to have notified subscribers by the time they return.
type Provider interface {
	SubscribeToAuthChanges(onChange func(Identity)) (unsubscribe func())
	SignInWithCredentials(ctx context.Context, email, password string) error
	CreateAccountWithCredentials(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	SendPasswordResetEmail(ctx context.Context, email string) error
}
