// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package postgres implements auth.AccountRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/auth"
)

// Querier is the subset of *pgxpool.Pool the repository uses.
// pgxmock.PgxPoolIface satisfies it in unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, username, email, password_hash, is_verified,
		       verification_fingerprint, verification_expires_at,
		       password_reset_fingerprint, password_reset_expires_at,
		       last_challenge_email_sent_at, remaining_challenge_email_requests,
		       created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Querier) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account auth.Account) error {
	vf, ve := challengeArgs(account.Verification)
	rf, re := challengeArgs(account.PasswordReset)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, username, email, password_hash, is_verified,
			verification_fingerprint, verification_expires_at,
			password_reset_fingerprint, password_reset_expires_at,
			last_challenge_email_sent_at, remaining_challenge_email_requests,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		account.ID.String(),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Verified,
		vf, ve,
		rf, re,
		account.LastChallengeEmailSentAt,
		account.RemainingChallengeEmailRequests,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code(auth.CodeAlreadyExists).
				With("constraint", pgErr.ConstraintName).
				With("username", account.Username).
				Wrap(err)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// FindByID retrieves an account by ID.
func (r *AccountRepository) FindByID(ctx context.Context, id ulid.ULID) (auth.Account, error) {
	return r.findOne(ctx, "id", id.String())
}

// FindByEmail retrieves an account by exact email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (auth.Account, error) {
	return r.findOne(ctx, "email", email)
}

// FindByUsername retrieves an account by exact username.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (auth.Account, error) {
	return r.findOne(ctx, "username", username)
}

// FindByVerificationFingerprint retrieves the account holding a verification
// fingerprint. Expiry is checked by the caller.
func (r *AccountRepository) FindByVerificationFingerprint(ctx context.Context, fingerprint string) (auth.Account, error) {
	return r.findOne(ctx, "verification_fingerprint", fingerprint)
}

// FindByResetFingerprint retrieves the account holding a password reset
// fingerprint. Expiry is checked by the caller.
func (r *AccountRepository) FindByResetFingerprint(ctx context.Context, fingerprint string) (auth.Account, error) {
	return r.findOne(ctx, "password_reset_fingerprint", fingerprint)
}

// Save overwrites every mutable column of an existing account.
func (r *AccountRepository) Save(ctx context.Context, account auth.Account) error {
	vf, ve := challengeArgs(account.Verification)
	rf, re := challengeArgs(account.PasswordReset)

	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			username = $2,
			email = $3,
			password_hash = $4,
			is_verified = $5,
			verification_fingerprint = $6,
			verification_expires_at = $7,
			password_reset_fingerprint = $8,
			password_reset_expires_at = $9,
			last_challenge_email_sent_at = $10,
			remaining_challenge_email_requests = $11,
			updated_at = $12
		WHERE id = $1
	`,
		account.ID.String(),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Verified,
		vf, ve,
		rf, re,
		account.LastChallengeEmailSentAt,
		account.RemainingChallengeEmailRequests,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_SAVE_FAILED").
			With("operation", "update account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// findOne looks up a single account by a unique column. column is always a
// constant from this file, never caller input.
func (r *AccountRepository) findOne(ctx context.Context, column, value string) (auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, value) //nolint:gosec // column is a package constant

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("by", column).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return auth.Account{}, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "find account").
			With("by", column).
			Wrap(err)
	}
	return account, nil
}

// challengeArgs maps a Challenge to its nullable column pair.
func challengeArgs(c auth.Challenge) (*string, *time.Time) {
	if c.IsZero() {
		return nil, nil
	}
	fp, exp := c.Fingerprint, c.ExpiresAt
	return &fp, &exp
}

func challengeFrom(fp *string, exp *time.Time) auth.Challenge {
	if fp == nil || exp == nil {
		return auth.Challenge{}
	}
	return auth.Challenge{Fingerprint: *fp, ExpiresAt: *exp}
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (auth.Account, error) {
	var (
		idStr                string
		a                    auth.Account
		verifyFP, resetFP    *string
		verifyExp, resetExp  *time.Time
		lastChallengeEmailAt *time.Time
	)

	err := row.Scan(
		&idStr,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.Verified,
		&verifyFP, &verifyExp,
		&resetFP, &resetExp,
		&lastChallengeEmailAt,
		&a.RemainingChallengeEmailRequests,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Account{}, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return auth.Account{}, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return auth.Account{}, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	a.ID = id
	a.Verification = challengeFrom(verifyFP, verifyExp)
	a.PasswordReset = challengeFrom(resetFP, resetExp)
	a.LastChallengeEmailSentAt = lastChallengeEmailAt
	return a, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
