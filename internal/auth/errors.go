// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrRateLimited is wrapped by errors refused by the challenge email budget.
var ErrRateLimited = errors.New("rate limited")

// Error codes attached to auth errors via oops.Code. The HTTP layer maps
// these to status codes; callers in Go should compare with errutil helpers
// or oops.AsOops rather than matching messages.
const (
	CodeAlreadyExists         = "AUTH_ALREADY_EXISTS"
	CodeAccountNotFound       = "AUTH_ACCOUNT_NOT_FOUND"
	CodeNotVerified           = "AUTH_NOT_VERIFIED"
	CodeAlreadyVerified       = "AUTH_ALREADY_VERIFIED"
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeUnauthenticated       = "AUTH_UNAUTHENTICATED"
	CodeInvalidSession        = "AUTH_INVALID_SESSION"
	CodeSessionRevoked        = "AUTH_SESSION_REVOKED"
	CodeInvalidOrExpiredToken = "AUTH_INVALID_OR_EXPIRED_TOKEN"
	CodeRateLimited           = "AUTH_RATE_LIMITED"
	CodeBadRequest            = "AUTH_BAD_REQUEST"
	CodeMailDispatchFailed    = "AUTH_MAIL_DISPATCH_FAILED"
)
