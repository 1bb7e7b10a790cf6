// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holosession/internal/provider/local"
)

// ResetRepository implements local.ResetRepository using PostgreSQL.
type ResetRepository struct {
	pool poolIface
}

// NewResetRepository creates a new ResetRepository.
func NewResetRepository(pool poolIface) *ResetRepository {
	return &ResetRepository{pool: pool}
}

// Create stores a new reset request.
func (r *ResetRepository) Create(ctx context.Context, reset *local.PasswordReset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_resets (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		reset.ID.String(),
		reset.AccountID.String(),
		reset.TokenHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert reset").
			With("account_id", reset.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *ResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*local.PasswordReset, error) {
	var (
		idStr, accountIDStr string
		reset               local.PasswordReset
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, token_hash, expires_at, created_at
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &accountIDStr, &reset.TokenHash, &reset.ExpiresAt, &reset.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(local.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").With("operation", "get reset by token hash").Wrap(err)
	}

	if reset.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("RESET_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if reset.AccountID, err = ulid.Parse(accountIDStr); err != nil {
		return nil, oops.Code("RESET_INVALID_ID").With("account_id", accountIDStr).Wrap(err)
	}
	return &reset, nil
}

// DeleteByAccount removes all reset requests for an account.
func (r *ResetRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE account_id = $1`, accountID.String()); err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete resets by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes reset requests expired at now.
func (r *ResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").With("operation", "delete expired resets").Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ local.ResetRepository = (*ResetRepository)(nil)
