// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package local

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MemoryAccountRepository is an in-process AccountRepository.
// Accounts are copied on the way in and out.
type MemoryAccountRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*Account
	byEmail map[string]ulid.ULID
}

// NewMemoryAccountRepository returns an empty repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:    make(map[ulid.ULID]*Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create implements AccountRepository.
func (r *MemoryAccountRepository) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := NormalizeEmail(account.Email)
	if _, taken := r.byEmail[email]; taken {
		return oops.Code("ACCOUNT_DUPLICATE_EMAIL").With("email", email).Wrap(ErrDuplicateEmail)
	}
	stored := copyAccount(account)
	stored.Email = email
	r.byID[account.ID] = stored
	r.byEmail[email] = account.ID
	return nil
}

// GetByID implements AccountRepository.
func (r *MemoryAccountRepository) GetByID(_ context.Context, id ulid.ULID) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(ErrNotFound)
	}
	return copyAccount(a), nil
}

// GetByEmail implements AccountRepository.
func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
	}
	return copyAccount(r.byID[id]), nil
}

// Update implements AccountRepository.
func (r *MemoryAccountRepository) Update(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[account.ID]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", account.ID.String()).Wrap(ErrNotFound)
	}
	existing.PasswordHash = account.PasswordHash
	existing.FailedAttempts = account.FailedAttempts
	existing.LockedUntil = copyTime(account.LockedUntil)
	existing.UpdatedAt = account.UpdatedAt
	return nil
}

// UpdatePassword implements AccountRepository.
func (r *MemoryAccountRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(ErrNotFound)
	}
	existing.PasswordHash = passwordHash
	existing.FailedAttempts = 0
	existing.LockedUntil = nil
	existing.UpdatedAt = now
	return nil
}

func copyAccount(a *Account) *Account {
	c := *a
	c.LockedUntil = copyTime(a.LockedUntil)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// MemoryResetRepository is an in-process ResetRepository.
type MemoryResetRepository struct {
	mu     sync.Mutex
	resets map[ulid.ULID]PasswordReset
}

// NewMemoryResetRepository returns an empty repository.
func NewMemoryResetRepository() *MemoryResetRepository {
	return &MemoryResetRepository{resets: make(map[ulid.ULID]PasswordReset)}
}

// Create implements ResetRepository.
func (r *MemoryResetRepository) Create(_ context.Context, reset *PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets[reset.ID] = *reset
	return nil
}

// GetByTokenHash implements ResetRepository.
func (r *MemoryResetRepository) GetByTokenHash(_ context.Context, tokenHash string) (*PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reset := range r.resets {
		if reset.TokenHash == tokenHash {
			found := reset
			return &found, nil
		}
	}
	return nil, oops.Code("RESET_NOT_FOUND").Wrap(ErrNotFound)
}

// DeleteByAccount implements ResetRepository.
func (r *MemoryResetRepository) DeleteByAccount(_ context.Context, accountID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, reset := range r.resets {
		if reset.AccountID == accountID {
			delete(r.resets, id)
		}
	}
	return nil
}

// DeleteExpired implements ResetRepository.
func (r *MemoryResetRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, reset := range r.resets {
		if reset.IsExpired(now) {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}

var (
	_ AccountRepository = (*MemoryAccountRepository)(nil)
	_ ResetRepository   = (*MemoryResetRepository)(nil)
)
