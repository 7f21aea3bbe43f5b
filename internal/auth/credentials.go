// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Credential lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Audiences separate the two credential kinds so neither can stand in for
// the other, even if an operator configures the same secret twice.
const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

// ErrInvalidCredential is wrapped by every parse failure. Parse errors carry
// no oops code; callers attach the one that fits their operation.
var ErrInvalidCredential = errors.New("invalid credential")

// IssuerConfig configures credential signing.
type IssuerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// AccessClaims are carried by access credentials.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Issuer signs and verifies access and refresh credentials (HS256 JWTs).
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewIssuer creates an Issuer. Both secrets are required and must differ.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, oops.Code("AUTH_ISSUER_INVALID").Errorf("access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, oops.Code("AUTH_ISSUER_INVALID").Errorf("refresh secret is required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, oops.Code("AUTH_ISSUER_INVALID").Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "contactsd"
	}
	return &Issuer{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
	}, nil
}

// RefreshTTL is the lifetime of refresh credentials; the HTTP layer uses it
// as the persistent cookie max-age.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssueAccess signs a short-lived access credential for p.
func (i *Issuer) IssueAccess(p Principal, now time.Time) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: i.registered(p.ID, audienceAccess, now, i.accessTTL),
		Username:         p.Username,
		Email:            p.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", oops.Code("AUTH_SIGN_FAILED").With("kind", audienceAccess).Wrap(err)
	}
	return signed, nil
}

// IssueRefresh signs a refresh credential carrying only the account ID.
func (i *Issuer) IssueRefresh(id ulid.ULID, now time.Time) (string, error) {
	claims := i.registered(id, audienceRefresh, now, i.refreshTTL)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", oops.Code("AUTH_SIGN_FAILED").With("kind", audienceRefresh).Wrap(err)
	}
	return signed, nil
}

// ParseAccess verifies an access credential and returns its claims.
func (i *Issuer) ParseAccess(token string, now time.Time) (AccessClaims, ulid.ULID, error) {
	var claims AccessClaims
	id, err := i.parse(token, &claims, i.accessSecret, audienceAccess, now)
	if err != nil {
		return AccessClaims{}, ulid.ULID{}, err
	}
	return claims, id, nil
}

// ParseRefresh verifies a refresh credential and returns the account ID.
func (i *Issuer) ParseRefresh(token string, now time.Time) (ulid.ULID, error) {
	var claims jwt.RegisteredClaims
	return i.parse(token, &claims, i.refreshSecret, audienceRefresh, now)
}

func (i *Issuer) registered(id ulid.ULID, audience string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   id.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) parse(token string, claims jwt.Claims, secret []byte, audience string, now time.Time) (ulid.ULID, error) {
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return ulid.ULID{}, oops.With("kind", audience).Wrapf(ErrInvalidCredential, "%v", err)
	}
	if !parsed.Valid {
		return ulid.ULID{}, oops.With("kind", audience).Wrap(ErrInvalidCredential)
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return ulid.ULID{}, oops.With("kind", audience).Wrapf(ErrInvalidCredential, "%v", err)
	}
	id, err := ulid.Parse(subject)
	if err != nil {
		return ulid.ULID{}, oops.With("kind", audience).With("subject", subject).Wrapf(ErrInvalidCredential, "%v", err)
	}
	return id, nil
}
