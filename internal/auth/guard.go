// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Authenticate resolves the principal behind an access credential.
// The account is re-read on every call so a deleted account loses access
// immediately instead of when its credential expires.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (principal Principal, err error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	if accessToken == "" {
		return Principal{}, oops.Code(CodeUnauthenticated).Errorf("user is not authorized or token expired")
	}

	_, id, err := s.issuer.ParseAccess(accessToken, s.cfg.Now())
	if err != nil {
		return Principal{}, oops.Code(CodeUnauthenticated).Wrap(err)
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, oops.Code(CodeUnauthenticated).
				With("account_id", id.String()).
				Errorf("user not found or no longer exists")
		}
		return Principal{}, oops.Code("AUTH_GUARD_FAILED").With("operation", "find account by id").Wrap(err)
	}

	return account.Principal(), nil
}
