// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package local

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holosession/internal/validation"
)

// Repository errors.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an account already uses the address.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Account is a locally stored identity.
type Account struct {
	ID             ulid.ULID
	Email          string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates an account with a fresh ULID.
// email is normalized with NormalizeEmail.
func NewAccount(email, passwordHash string, now time.Time) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("LOCAL_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, oops.Code("LOCAL_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
// Trimming matches validation.TrimEmail so the address checked is the one stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(validation.TrimEmail(email))
}

// IsLocked returns true if the account is locked out at now.
func (a *Account) IsLocked(now time.Time) bool {
	return IsLockedOut(a.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets the lockout once
// the threshold is reached.
func (a *Account) RecordFailure(now time.Time) {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts, now)
	a.UpdatedAt = now
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess(now time.Time) {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = now
}

// User returns the identity handle for the account.
func (a *Account) User() *User {
	return &User{id: a.ID.String(), email: a.Email}
}

// User is the session.Identity handed to subscribers.
type User struct {
	id    string
	email string
}

// NewUser builds a handle for a known account ID and address.
func NewUser(id, email string) *User {
	return &User{id: id, email: email}
}

// UID implements session.Identity.
func (u *User) UID() string { return u.id }

// Email returns the account's normalized address.
func (u *User) Email() string { return u.email }

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account.
	// Returns ErrDuplicateEmail if the address is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update persists the failure counter, lockout and password hash.
	Update(ctx context.Context, account *Account) error

	// UpdatePassword sets the password hash and clears any lockout.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error
}
