// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// OpaqueTokenBytes is the entropy of a challenge token: 32 bytes = 64 hex chars.
const OpaqueTokenBytes = 32

// Challenge is a single-use, time-bounded proof sent by email. Only the
// fingerprint of the token is kept; the raw token exists in the email alone.
type Challenge struct {
	Fingerprint string
	ExpiresAt   time.Time
}

// IsZero reports whether the challenge has been cleared.
func (c Challenge) IsZero() bool {
	return c.Fingerprint == "" && c.ExpiresAt.IsZero()
}

// IsLive reports whether the challenge is set and has not expired at now.
func (c Challenge) IsLive(now time.Time) bool {
	return c.Fingerprint != "" && c.ExpiresAt.After(now)
}

// Matches reports whether token hashes to this challenge's fingerprint.
func (c Challenge) Matches(token string) bool {
	return MatchFingerprint(token, c.Fingerprint)
}

// NewOpaqueToken returns a cryptographically random token, hex encoded.
func NewOpaqueToken() (string, error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// Fingerprint computes the SHA-256 hex digest of a token.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// MatchFingerprint checks if the plaintext token matches the stored fingerprint
// in constant time.
func MatchFingerprint(token, fingerprint string) bool {
	if token == "" || fingerprint == "" {
		return false
	}
	computed := Fingerprint(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(fingerprint)) == 1
}

// IssueChallenge creates a new token and the challenge that stores its
// fingerprint, expiring ttl after now.
func IssueChallenge(now time.Time, ttl time.Duration) (string, Challenge, error) {
	token, err := NewOpaqueToken()
	if err != nil {
		return "", Challenge{}, err
	}
	return token, Challenge{
		Fingerprint: Fingerprint(token),
		ExpiresAt:   now.Add(ttl),
	}, nil
}
