// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"math"
	"time"

	"github.com/samber/oops"
)

// Challenge email budget defaults.
const (
	// DefaultChallengeWindow is the cooldown window shared by verification
	// and password reset emails.
	DefaultChallengeWindow = 60 * time.Minute

	// InitialChallengeBudget is the request budget granted at registration.
	InitialChallengeBudget = 5

	// RefillChallengeBudget is the budget granted when a cooldown window has
	// fully elapsed. The request that triggers the refill is not counted.
	RefillChallengeBudget = 4
)

// CheckCooldown reports whether now falls inside the cooldown window that
// started at lastSentAt. When it does, remainingMinutes is the whole number of
// minutes (rounded up, at least 1) until the window closes.
// A nil lastSentAt is never in cooldown.
func CheckCooldown(now time.Time, lastSentAt *time.Time, window time.Duration) (remainingMinutes int, inCooldown bool) {
	if lastSentAt == nil {
		return 0, false
	}

	elapsed := now.Sub(*lastSentAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= window {
		return 0, false
	}

	remaining := int(math.Ceil(window.Minutes() - elapsed.Minutes()))
	if remaining < 1 {
		remaining = 1
	}
	return remaining, true
}

// ApplyChallengeBudget charges one challenge email against the account.
//
// Inside the cooldown window the budget is decremented and the window start is
// kept; once the budget is exhausted the request is refused with
// AUTH_RATE_LIMITED. Outside the window the budget is refilled and the window
// restarts at now.
func ApplyChallengeBudget(a Account, now time.Time, window time.Duration) (Account, error) {
	remaining, inCooldown := CheckCooldown(now, a.LastChallengeEmailSentAt, window)
	if inCooldown {
		if a.RemainingChallengeEmailRequests <= 0 {
			return a, oops.Code(CodeRateLimited).
				With("remaining_minutes", remaining).
				Wrapf(ErrRateLimited, "please wait %d minute(s)", remaining)
		}
		a.RemainingChallengeEmailRequests--
		return a, nil
	}

	sentAt := now
	a.RemainingChallengeEmailRequests = RefillChallengeBudget
	a.LastChallengeEmailSentAt = &sentAt
	return a, nil
}

// RemainingMinutes extracts the cooldown remaining from an AUTH_RATE_LIMITED
// error. It returns 0 for any other error.
func RemainingMinutes(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	if v, ok := oopsErr.Context()["remaining_minutes"].(int); ok {
		return v
	}
	return 0
}
