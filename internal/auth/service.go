// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/luan-services/contactsd/pkg/errutil"
)

// Challenge lifetimes.
const (
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResetTTL        = 15 * time.Minute

	// placeholderResetTTL bounds the unusable reset challenge written at
	// registration so both reset columns are populated from the start.
	placeholderResetTTL = 2 * time.Second
)

// dummyPasswordHash is verified against when no account matches so that
// login takes the same time whether or not the email is registered.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

var tracer = otel.Tracer("github.com/luan-services/contactsd/internal/auth")

// Config holds the service's tunables. Zero values take the defaults.
type Config struct {
	// WebsiteURL is the front-end origin links in emails point to.
	WebsiteURL string

	VerificationTTL time.Duration
	ResetTTL        time.Duration

	// ChallengeWindow is the cooldown window for challenge emails.
	ChallengeWindow time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = DefaultVerificationTTL
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = DefaultResetTTL
	}
	if c.ChallengeWindow <= 0 {
		c.ChallengeWindow = DefaultChallengeWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Service provides account authentication operations.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	issuer   *Issuer
	mailer   Mailer
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a new Service using slog.Default for logging.
func NewService(accounts AccountRepository, hasher PasswordHasher, issuer *Issuer, mailer Mailer, cfg Config) (*Service, error) {
	return NewServiceWithLogger(accounts, hasher, issuer, mailer, cfg, nil)
}

// NewServiceWithLogger creates a new Service with an explicit logger.
// A nil logger falls back to slog.Default.
func NewServiceWithLogger(
	accounts AccountRepository,
	hasher PasswordHasher,
	issuer *Issuer,
	mailer Mailer,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("credential issuer is required")
	}
	if mailer == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("mailer is required")
	}
	if cfg.WebsiteURL == "" {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("website URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		issuer:   issuer,
		mailer:   mailer,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}, nil
}

// RefreshTTL is the refresh credential lifetime.
func (s *Service) RefreshTTL() time.Duration {
	return s.issuer.RefreshTTL()
}

// RegisterResult is returned by Register. It never carries the password hash.
type RegisterResult struct {
	ID    string
	Email string
}

// Tokens is the credential pair issued at login.
type Tokens struct {
	Access  string
	Refresh string
}

// Register creates an unverified account and emails a verification link.
// Nothing is persisted if the email cannot be sent.
func (s *Service) Register(ctx context.Context, username, email, password string) (result RegisterResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	now := s.cfg.Now()

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return RegisterResult{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return RegisterResult{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(username, email, hash, now)
	if err != nil {
		return RegisterResult{}, err
	}

	token, verification, err := IssueChallenge(now, s.cfg.VerificationTTL)
	if err != nil {
		return RegisterResult{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue verification challenge").
			Wrap(err)
	}
	// The raw placeholder token is discarded; its fingerprint can never be
	// presented and it expires almost immediately.
	_, placeholder, err := IssueChallenge(now, placeholderResetTTL)
	if err != nil {
		return RegisterResult{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue placeholder reset challenge").
			Wrap(err)
	}

	account = account.
		WithVerificationChallenge(verification, now).
		WithResetChallenge(placeholder, now)
	sentAt := now
	account.LastChallengeEmailSentAt = &sentAt
	account.RemainingChallengeEmailRequests = InitialChallengeBudget

	if err := s.sendVerification(ctx, account, token, "register"); err != nil {
		return RegisterResult{}, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errutil.HasCode(err, CodeAlreadyExists) {
			return RegisterResult{}, oops.Code(CodeAlreadyExists).
				With("email", email).
				Errorf("user already registered")
		}
		return RegisterResult{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())
	span.SetAttributes(attribute.String("account.id", account.ID.String()))

	return RegisterResult{ID: account.ID.String(), Email: account.Email}, nil
}

// ensureAvailable rejects registration when the email or username is taken.
func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	_, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return oops.Code(CodeAlreadyExists).With("email", email).Errorf("user already registered")
	case !errors.Is(err, ErrNotFound):
		return oops.Code("AUTH_REGISTER_FAILED").With("operation", "find account by email").Wrap(err)
	}

	_, err = s.accounts.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return oops.Code(CodeAlreadyExists).With("username", username).Errorf("username already taken")
	case !errors.Is(err, ErrNotFound):
		return oops.Code("AUTH_REGISTER_FAILED").With("operation", "find account by username").Wrap(err)
	}
	return nil
}

// Login verifies email and password and issues an access/refresh pair.
//
// A missing account and an unverified one produce the same AUTH_NOT_VERIFIED
// error, and both still run a password verification so the response time
// does not reveal which case applied.
func (s *Service) Login(ctx context.Context, email, password string) (tokens Tokens, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	now := s.cfg.Now()

	account, lookupErr := s.accounts.FindByEmail(ctx, email)
	exists := true
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return Tokens{}, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find account by email").
				Wrap(lookupErr)
		}
		exists = false
	}

	targetHash := dummyPasswordHash
	if exists {
		targetHash = account.PasswordHash
	}
	valid, verifyErr := s.hasher.Verify(password, targetHash)

	if !exists || !account.Verified {
		return Tokens{}, oops.Code(CodeNotVerified).Errorf("verify email before log in")
	}
	if verifyErr != nil {
		return Tokens{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !valid {
		return Tokens{}, oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
	}

	s.upgradeHash(ctx, account, password, now)

	access, err := s.issuer.IssueAccess(account.Principal(), now)
	if err != nil {
		return Tokens{}, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue access credential").Wrap(err)
	}
	refresh, err := s.issuer.IssueRefresh(account.ID, now)
	if err != nil {
		return Tokens{}, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue refresh credential").Wrap(err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	return Tokens{Access: access, Refresh: refresh}, nil
}

// upgradeHash re-hashes legacy or weak digests after a successful login.
// Failure is logged and otherwise ignored; the login still succeeds.
func (s *Service) upgradeHash(ctx context.Context, account Account, password string, now time.Time) {
	if !s.hasher.NeedsUpgrade(account.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"account_id", account.ID.String(),
			"error", err.Error())
		return
	}
	if err := s.accounts.Save(ctx, account.WithPasswordHash(hash, now)); err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"account_id", account.ID.String(),
			"error", err.Error())
	}
}

// Refresh exchanges a refresh credential for a new access credential. The
// refresh credential itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (access string, err error) {
	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return "", oops.Code(CodeUnauthenticated).Errorf("refresh token missing")
	}

	now := s.cfg.Now()

	id, err := s.issuer.ParseRefresh(refreshToken, now)
	if err != nil {
		return "", oops.Code(CodeInvalidSession).Wrap(err)
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeSessionRevoked).
				With("account_id", id.String()).
				Errorf("user no longer exists")
		}
		return "", oops.Code("AUTH_REFRESH_FAILED").With("operation", "find account by id").Wrap(err)
	}

	access, err = s.issuer.IssueAccess(account.Principal(), now)
	if err != nil {
		return "", oops.Code("AUTH_REFRESH_FAILED").With("operation", "issue access credential").Wrap(err)
	}
	return access, nil
}

// Logout accepts any present refresh credential; the caller clears the
// cookie. Outstanding access credentials stay valid until they expire.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	_, span := tracer.Start(ctx, "auth.Logout")
	defer span.End()

	if refreshToken == "" {
		err := oops.Code(CodeUnauthenticated).Errorf("refresh token missing")
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errutil.Code(err))
	}
	span.End()
}
