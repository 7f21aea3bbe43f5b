// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account is a registered user. Values are transformed with the With*/Mark*
// methods and persisted with a single AccountRepository.Save.
type Account struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	Verified     bool

	Verification  Challenge
	PasswordReset Challenge

	// LastChallengeEmailSentAt starts the cooldown window shared by
	// verification and reset emails.
	LastChallengeEmailSentAt        *time.Time
	RemainingChallengeEmailRequests int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates an unverified Account with a fresh ID.
// Username, email and password hash are required.
func NewAccount(username, email, passwordHash string, now time.Time) (Account, error) {
	if strings.TrimSpace(username) == "" {
		return Account{}, oops.Code(CodeBadRequest).Errorf("username is required")
	}
	if strings.TrimSpace(email) == "" {
		return Account{}, oops.Code(CodeBadRequest).Errorf("email is required")
	}
	if passwordHash == "" {
		return Account{}, oops.Code(CodeBadRequest).Errorf("password hash is required")
	}

	return Account{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Principal returns the identity exposed to authenticated callers.
func (a Account) Principal() Principal {
	return Principal{ID: a.ID, Username: a.Username, Email: a.Email}
}

// WithVerificationChallenge replaces any previous verification challenge.
func (a Account) WithVerificationChallenge(c Challenge, now time.Time) Account {
	a.Verification = c
	a.UpdatedAt = now
	return a
}

// WithResetChallenge replaces any previous password reset challenge.
func (a Account) WithResetChallenge(c Challenge, now time.Time) Account {
	a.PasswordReset = c
	a.UpdatedAt = now
	return a
}

// MarkVerified flips the account to verified and consumes the verification
// challenge.
func (a Account) MarkVerified(now time.Time) Account {
	a.Verified = true
	a.Verification = Challenge{}
	a.UpdatedAt = now
	return a
}

// WithPassword replaces the password hash and consumes the reset challenge.
func (a Account) WithPassword(passwordHash string, now time.Time) Account {
	a.PasswordHash = passwordHash
	a.PasswordReset = Challenge{}
	a.UpdatedAt = now
	return a
}

// WithPasswordHash swaps the stored hash without touching any challenge.
// Used to upgrade legacy digests after a successful login.
func (a Account) WithPasswordHash(passwordHash string, now time.Time) Account {
	a.PasswordHash = passwordHash
	a.UpdatedAt = now
	return a
}

// Principal identifies the caller of an authenticated operation.
type Principal struct {
	ID       ulid.ULID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// AccountRepository manages account persistence.
// Lookups return an error wrapping ErrNotFound when nothing matches.
type AccountRepository interface {
	// Create stores a new account. Duplicate usernames or emails return an
	// error with code AUTH_ALREADY_EXISTS.
	Create(ctx context.Context, account Account) error

	// FindByID retrieves an account by ID.
	FindByID(ctx context.Context, id ulid.ULID) (Account, error)

	// FindByEmail retrieves an account by exact email.
	FindByEmail(ctx context.Context, email string) (Account, error)

	// FindByUsername retrieves an account by exact username.
	FindByUsername(ctx context.Context, username string) (Account, error)

	// FindByVerificationFingerprint retrieves the account holding the given
	// verification fingerprint, regardless of expiry.
	FindByVerificationFingerprint(ctx context.Context, fingerprint string) (Account, error)

	// FindByResetFingerprint retrieves the account holding the given password
	// reset fingerprint, regardless of expiry.
	FindByResetFingerprint(ctx context.Context, fingerprint string) (Account, error)

	// Save overwrites every mutable field of an existing account.
	Save(ctx context.Context, account Account) error
}
