// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package web

import (
	"net/http"
	"time"
)

// RefreshCookieName is the cookie carrying the refresh credential.
const RefreshCookieName = "refreshToken"

// refreshCookie builds the refresh cookie. Without rememberMe it is a
// session cookie; the credential inside still expires on its own.
func refreshCookie(value string, secure, rememberMe bool, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if rememberMe {
		c.MaxAge = int(ttl / time.Second)
	}
	return c
}

// clearedRefreshCookie expires the refresh cookie. Attributes must match
// the ones it was set with or browsers keep the original.
func clearedRefreshCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}

func readRefreshCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
