// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package auth provides account authentication and credential lifecycle
// management for contactsd.
//
// # Domain Types
//
// Account is a plain value. Every mutation the service performs goes through
// one of its With*/Mark* methods, each of which returns a new Account:
//   - WithVerificationChallenge - replaces the email verification challenge
//   - WithResetChallenge - replaces the password reset challenge
//   - MarkVerified - flips Verified and consumes the verification challenge
//   - WithPassword - replaces the hash and consumes the reset challenge
//
// The service loads an account, applies one transformation and hands the
// result to a single AccountRepository.Save call.
//
// # Tokens
//
// Challenge tokens are 32 random bytes rendered as 64 hex characters. Only
// their SHA-256 fingerprint is stored. Access and refresh credentials are
// HS256 JWTs signed with two independent secrets (see Issuer).
//
// # Services
//
// Service implements register, login, refresh, logout, email verification,
// resend, forgot/reset password and the access guard (Authenticate).
// It is created with NewService, which validates its dependencies.
package auth
