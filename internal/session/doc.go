// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session owns the client-side authentication state.
//
// A Controller subscribes once to an identity Provider and mirrors the
// provider's view of who is signed in. Operations (Login, Signup, Logout,
// ResetPassword) are fire-and-observe: they forward to the provider and
// report failure, but only the provider's auth-change notification updates
// the State. Initializing starts true and flips to false exactly once, on the
// first notification.
//
// Presentation layers read the State directly, block on WaitReady, or
// observe transitions through Watch.
package session
