// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"

	"github.com/luan-services/contactsd/pkg/errutil"
)

// VerifyEmail consumes a verification token and marks its account verified.
// A token works at most once.
func (s *Service) VerifyEmail(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.VerifyEmail")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return oops.Code(CodeBadRequest).Errorf("verification token is required")
	}

	now := s.cfg.Now()

	account, err := s.accounts.FindByVerificationFingerprint(ctx, Fingerprint(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidOrExpired()
		}
		return oops.Code("AUTH_VERIFY_FAILED").With("operation", "find account by verification fingerprint").Wrap(err)
	}
	if !account.Verification.IsLive(now) || !account.Verification.Matches(token) {
		return invalidOrExpired()
	}

	if err := s.accounts.Save(ctx, account.MarkVerified(now)); err != nil {
		return oops.Code("AUTH_VERIFY_FAILED").With("operation", "save account").Wrap(err)
	}

	s.logger.InfoContext(ctx, "email verified", "account_id", account.ID.String())
	return nil
}

// ResendVerification issues a new verification challenge, replacing the
// previous one, subject to the challenge email budget.
func (s *Service) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ResendVerification")
	defer func() { endSpan(span, err) }()

	now := s.cfg.Now()

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeAccountNotFound).With("email", email).Errorf("user not found")
		}
		return oops.Code("AUTH_RESEND_FAILED").With("operation", "find account by email").Wrap(err)
	}
	if account.Verified {
		return oops.Code(CodeAlreadyVerified).Errorf("user already verified")
	}

	charged, err := ApplyChallengeBudget(account, now, s.cfg.ChallengeWindow)
	if err != nil {
		return err
	}

	token, challenge, err := IssueChallenge(now, s.cfg.VerificationTTL)
	if err != nil {
		return oops.Code("AUTH_RESEND_FAILED").With("operation", "issue verification challenge").Wrap(err)
	}
	updated := charged.WithVerificationChallenge(challenge, now)

	if err := s.sendVerification(ctx, updated, token, "resend_verification"); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, updated); err != nil {
		return oops.Code("AUTH_RESEND_FAILED").With("operation", "save account").Wrap(err)
	}
	return nil
}

// ForgotPassword emails a password reset link. Unknown emails succeed
// silently so the endpoint cannot be used to probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ForgotPassword")
	defer func() { endSpan(span, err) }()

	now := s.cfg.Now()

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return oops.Code("AUTH_FORGOT_FAILED").With("operation", "find account by email").Wrap(err)
	}

	charged, err := ApplyChallengeBudget(account, now, s.cfg.ChallengeWindow)
	if err != nil {
		return err
	}

	token, challenge, err := IssueChallenge(now, s.cfg.ResetTTL)
	if err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").With("operation", "issue reset challenge").Wrap(err)
	}
	updated := charged.WithResetChallenge(challenge, now)

	msg, err := renderChallenge(resetTemplate, updated.Email, resetSubject, challengeMailData{
		Username: updated.Username,
		Link:     ResetLink(s.cfg.WebsiteURL, token),
		Expiry:   humanDuration(s.cfg.ResetTTL),
	})
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg, "forgot_password"); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, updated); err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").With("operation", "save account").Wrap(err)
	}
	return nil
}

// VerifyResetToken reports whether a reset token is live without consuming it.
func (s *Service) VerifyResetToken(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.VerifyResetToken")
	defer func() { endSpan(span, err) }()

	_, err = s.lookupReset(ctx, token, s.cfg.Now())
	return err
}

// ResetPassword replaces the password and consumes the reset token in a
// single save.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ResetPassword")
	defer func() { endSpan(span, err) }()

	if newPassword == "" {
		return oops.Code(CodeBadRequest).Errorf("new password is required")
	}

	now := s.cfg.Now()

	account, err := s.lookupReset(ctx, token, now)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	if err := s.accounts.Save(ctx, account.WithPassword(hash, now)); err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "save account").Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset", "account_id", account.ID.String())
	return nil
}

func (s *Service) lookupReset(ctx context.Context, token string, now time.Time) (Account, error) {
	if token == "" {
		return Account{}, oops.Code(CodeBadRequest).Errorf("reset token is required")
	}

	account, err := s.accounts.FindByResetFingerprint(ctx, Fingerprint(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, invalidOrExpired()
		}
		return Account{}, oops.Code("AUTH_RESET_LOOKUP_FAILED").With("operation", "find account by reset fingerprint").Wrap(err)
	}
	if !account.PasswordReset.IsLive(now) || !account.PasswordReset.Matches(token) {
		return Account{}, invalidOrExpired()
	}
	return account, nil
}

func (s *Service) sendVerification(ctx context.Context, account Account, token, operation string) error {
	msg, err := renderChallenge(verificationTemplate, account.Email, verificationSubject, challengeMailData{
		Username: account.Username,
		Link:     VerificationLink(s.cfg.WebsiteURL, token),
		Expiry:   humanDuration(s.cfg.VerificationTTL),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, msg, operation)
}

func (s *Service) send(ctx context.Context, msg Message, operation string) error {
	// The dispatcher's code is context only, so it cannot shadow ours.
	if err := s.mailer.Send(ctx, msg); err != nil {
		return oops.Code(CodeMailDispatchFailed).
			With("operation", operation).
			With("mail_code", errutil.Code(err)).
			With("cause", err.Error()).
			Errorf("mail dispatch failed")
	}
	return nil
}

func invalidOrExpired() error {
	return oops.Code(CodeInvalidOrExpiredToken).Errorf("invalid or expired token")
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	minutes := int(d / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return plural(minutes, "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
