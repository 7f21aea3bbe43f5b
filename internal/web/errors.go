// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/luan-services/contactsd/internal/auth"
	"github.com/luan-services/contactsd/internal/contacts"
	"github.com/luan-services/contactsd/internal/validate"
	"github.com/luan-services/contactsd/pkg/errutil"
)

const internalErrorMessage = "internal server error"

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string                `json:"message"`
	Code    string                `json:"code,omitempty"`
	Errors  []validate.FieldError `json:"errors,omitempty"`
}

// StatusFor maps an error's oops code to an HTTP status.
func StatusFor(err error) int {
	switch errutil.Code(err) {
	case auth.CodeBadRequest,
		auth.CodeInvalidOrExpiredToken,
		auth.CodeAlreadyVerified,
		auth.CodeAlreadyExists,
		"AUTH_EMPTY_PASSWORD",
		validate.CodeInvalid,
		contacts.CodeInvalid:
		return http.StatusBadRequest
	case auth.CodeUnauthenticated, auth.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case auth.CodeNotVerified,
		auth.CodeInvalidSession,
		auth.CodeSessionRevoked,
		contacts.CodeForbidden:
		return http.StatusForbidden
	case auth.CodeAccountNotFound, contacts.CodeNotFound:
		return http.StatusNotFound
	case auth.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"message","code"}. Server errors are logged
// and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	code := errutil.Code(err)

	if status >= http.StatusInternalServerError {
		errutil.LogError(logger.With("method", r.Method, "path", r.URL.Path), "request failed", err)
		writeJSON(w, status, errorBody{Message: internalErrorMessage})
		return
	}

	body := errorBody{Message: publicMessage(err), Code: code}
	switch code {
	case validate.CodeInvalid:
		body.Errors = validate.Fields(err)
	case auth.CodeRateLimited:
		minutes := auth.RemainingMinutes(err)
		if minutes < 1 {
			minutes = 1
		}
		body.Message = fmt.Sprintf("Please wait %d minute(s)", minutes)
		w.Header().Set("Retry-After", strconv.Itoa(minutes*60))
	}
	writeJSON(w, status, body)
}

// publicMessage is the client-facing text for a 4xx error. Credential
// parse failures carry library text, so they get a fixed message.
func publicMessage(err error) string {
	if errors.Is(err, auth.ErrInvalidCredential) {
		switch errutil.Code(err) {
		case auth.CodeUnauthenticated:
			return "user is not authorized or token expired"
		case auth.CodeInvalidSession:
			return "invalid or expired refresh token"
		}
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// The status line is already out; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// messageBody is the {"message": ...} success shape.
type messageBody struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}
