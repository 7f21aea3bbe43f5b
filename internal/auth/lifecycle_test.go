// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luan-services/contactsd/internal/auth"
	"github.com/luan-services/contactsd/internal/auth/authtest"
	"github.com/luan-services/contactsd/pkg/errutil"
)

type lifecycle struct {
	svc      *auth.Service
	accounts *authtest.MemoryAccounts
	outbox   *authtest.Outbox
	clock    *authtest.Clock
}

func newLifecycle(t *testing.T) *lifecycle {
	t.Helper()
	l := &lifecycle{
		accounts: authtest.NewMemoryAccounts(),
		outbox:   &authtest.Outbox{},
		clock:    authtest.NewClock(testNow),
	}
	svc, err := auth.NewService(l.accounts, auth.NewArgon2idHasherWithParams(fastParams), newTestIssuer(t), l.outbox, auth.Config{
		WebsiteURL: "https://app.example.com",
		Now:        l.clock.Now,
	})
	require.NoError(t, err)
	l.svc = svc
	return l
}

func TestLifecycle_RegisterVerifyLogin(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t)

	_, err := l.svc.Register(ctx, "erin", "erin@example.com", "s3cret-pw")
	require.NoError(t, err)

	_, err = l.svc.Login(ctx, "erin@example.com", "s3cret-pw")
	errutil.AssertErrorCode(t, err, auth.CodeNotVerified)

	token := l.outbox.LastToken("erin@example.com")
	require.NotEmpty(t, token)

	require.NoError(t, l.svc.VerifyEmail(ctx, token))

	// A verification token works at most once.
	err = l.svc.VerifyEmail(ctx, token)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)

	tokens, err := l.svc.Login(ctx, "erin@example.com", "s3cret-pw")
	require.NoError(t, err)

	principal, err := l.svc.Authenticate(ctx, tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, "erin", principal.Username)

	_, err = l.svc.Register(ctx, "erin2", "erin@example.com", "x")
	errutil.AssertErrorCode(t, err, auth.CodeAlreadyExists)
}

func TestLifecycle_VerificationExpires(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t)

	_, err := l.svc.Register(ctx, "fay", "fay@example.com", "pw")
	require.NoError(t, err)
	token := l.outbox.LastToken("fay@example.com")

	l.clock.Advance(auth.DefaultVerificationTTL + time.Second)

	err = l.svc.VerifyEmail(ctx, token)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
}

func TestLifecycle_ResendBudget(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t)

	_, err := l.svc.Register(ctx, "gus", "gus@example.com", "pw")
	require.NoError(t, err)

	// Registration grants five requests inside the first window.
	for i := range auth.InitialChallengeBudget {
		l.clock.Advance(time.Minute)
		require.NoError(t, l.svc.ResendVerification(ctx, "gus@example.com"), "resend %d", i+1)
	}

	l.clock.Advance(time.Minute)
	err = l.svc.ResendVerification(ctx, "gus@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrRateLimited))
	remaining := auth.RemainingMinutes(err)
	assert.Equal(t, 54, remaining)

	// Once the window closes the budget refills.
	l.clock.Advance(time.Hour)
	require.NoError(t, l.svc.ResendVerification(ctx, "gus@example.com"))

	// Only the newest verification token is redeemable.
	messages := l.outbox.Messages()
	assert.Len(t, messages, 1+auth.InitialChallengeBudget+1)
	older := tokenInBody.FindString(messages[1].HTMLBody)
	errutil.AssertErrorCode(t, l.svc.VerifyEmail(ctx, older), auth.CodeInvalidOrExpiredToken)
	require.NoError(t, l.svc.VerifyEmail(ctx, l.outbox.LastToken("gus@example.com")))
}

func TestLifecycle_PasswordReset(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t)

	_, err := l.svc.Register(ctx, "hal", "hal@example.com", "old-pw")
	require.NoError(t, err)
	require.NoError(t, l.svc.VerifyEmail(ctx, l.outbox.LastToken("hal@example.com")))

	// The placeholder reset challenge written at registration is unusable.
	verifyToken := tokenInBody.FindString(l.outbox.Messages()[0].HTMLBody)
	errutil.AssertErrorCode(t, l.svc.VerifyResetToken(ctx, verifyToken), auth.CodeInvalidOrExpiredToken)

	require.NoError(t, l.svc.ForgotPassword(ctx, "hal@example.com"))
	resetToken := l.outbox.LastToken("hal@example.com")

	require.NoError(t, l.svc.VerifyResetToken(ctx, resetToken))
	require.NoError(t, l.svc.ResetPassword(ctx, resetToken, "new-pw"))

	errutil.AssertErrorCode(t, l.svc.ResetPassword(ctx, resetToken, "again"), auth.CodeInvalidOrExpiredToken)

	_, err = l.svc.Login(ctx, "hal@example.com", "old-pw")
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	_, err = l.svc.Login(ctx, "hal@example.com", "new-pw")
	require.NoError(t, err)
}

func TestLifecycle_ResetTokenExpires(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t)

	_, err := l.svc.Register(ctx, "ivy", "ivy@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, l.svc.ForgotPassword(ctx, "ivy@example.com"))
	token := l.outbox.LastToken("ivy@example.com")

	l.clock.Advance(auth.DefaultResetTTL + time.Second)

	errutil.AssertErrorCode(t, l.svc.ResetPassword(ctx, token, "new"), auth.CodeInvalidOrExpiredToken)
}

func TestLifecycle_DeletedAccountLosesAccess(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t)

	result, err := l.svc.Register(ctx, "jo", "jo@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, l.svc.VerifyEmail(ctx, l.outbox.LastToken("jo@example.com")))
	tokens, err := l.svc.Login(ctx, "jo@example.com", "pw")
	require.NoError(t, err)

	account, err := l.accounts.FindByEmail(ctx, "jo@example.com")
	require.NoError(t, err)
	require.Equal(t, result.ID, account.ID.String())
	l.accounts.Delete(account.ID)

	_, err = l.svc.Refresh(ctx, tokens.Refresh)
	errutil.AssertErrorCode(t, err, auth.CodeSessionRevoked)

	_, err = l.svc.Authenticate(ctx, tokens.Access)
	errutil.AssertErrorCode(t, err, auth.CodeUnauthenticated)
}

func TestLifecycle_MailFailureLeavesNoAccount(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t)
	l.outbox.Err = errors.New("smtp unavailable")

	_, err := l.svc.Register(ctx, "kim", "kim@example.com", "pw")
	errutil.AssertErrorCode(t, err, auth.CodeMailDispatchFailed)
	assert.Equal(t, 0, l.accounts.Len())
}
