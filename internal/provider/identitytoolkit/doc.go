// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package identitytoolkit adapts the Identity Toolkit v1 and Secure Token
// REST APIs to session.Provider.
//
// The signed-in session (ID token, refresh token and identity claims) is
// kept in a sessionstore.Store. On first use the saved session is restored
// by exchanging its refresh token; transient failures are retried with
// exponential backoff, and if every attempt fails the saved identity is
// used as-is. Subscribers always receive exactly one initial notification
// once restoration settles.
//
// ID tokens are decoded without verifying their signature. The claims only
// label the local session; the backend verifies tokens on every call that
// matters.
package identitytoolkit
