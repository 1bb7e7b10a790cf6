// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package local implements an in-process identity provider backed by an
// account repository.
//
// Passwords are stored as argon2id hashes. Login verification runs in
// constant time whether or not the account exists, and repeated failures
// lock the account for LockoutDuration. Password reset tokens are random,
// stored only as SHA-256 hashes, single use, and delivered through a Mailer.
//
// Provider satisfies session.Provider. Auth-change notifications are
// delivered synchronously and in order; callbacks must not call back into
// the Provider.
package local
