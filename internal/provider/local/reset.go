// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32 // 64 hex chars
	ResetTokenExpiry = time.Hour
)

// PasswordReset is a pending password reset request.
type PasswordReset struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewPasswordReset creates a reset request for an account.
func NewPasswordReset(accountID ulid.ULID, tokenHash string, now, expiresAt time.Time) (*PasswordReset, error) {
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_TOKEN_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry must be in the future")
	}
	return &PasswordReset{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsExpired returns true if the reset has expired at now.
func (r *PasswordReset) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// GenerateResetToken creates a secure random token and its hash.
// The plaintext token is mailed to the user; only the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash
// in constant time.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashResetToken(token)), []byte(hash)) == 1
}

// HashResetToken computes the hex SHA-256 of a token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetRepository manages password reset persistence.
type ResetRepository interface {
	// Create stores a new reset request.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByTokenHash retrieves a reset request by its token hash.
	// Returns ErrNotFound if none matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// DeleteByAccount removes all reset requests for an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) error

	// DeleteExpired removes reset requests expired at now and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
