// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package web

import (
	"net/http"

	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/auth"
	"github.com/luan-services/contactsd/internal/validate"
	"github.com/luan-services/contactsd/pkg/errutil"
)

type registerResponse struct {
	ID      string `json:"_id"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req validate.RegisterRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "register", err)
		return
	}
	res, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	h.metrics.RecordAuth("register", "")
	writeJSON(w, http.StatusCreated, registerResponse{
		ID:      res.ID,
		Email:   res.Email,
		Message: "User created and verification email sent",
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req validate.LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "login", err)
		return
	}
	tokens, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	h.metrics.RecordAuth("login", "")

	rememberMe := req.RememberMe != nil && *req.RememberMe
	http.SetCookie(w, refreshCookie(tokens.Refresh, h.secure, rememberMe, h.auth.RefreshTTL()))
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: tokens.Access})
}

func (h *handler) current(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, oops.Code(auth.CodeUnauthenticated).Errorf("user is not authorized or token missing"))
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	access, err := h.auth.Refresh(r.Context(), readRefreshCookie(r))
	if err != nil {
		if errutil.HasCode(err, auth.CodeSessionRevoked) {
			http.SetCookie(w, clearedRefreshCookie(h.secure))
		}
		h.fail(w, r, "refresh", err)
		return
	}
	h.metrics.RecordAuth("refresh", "")
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: access})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), readRefreshCookie(r)); err != nil {
		h.fail(w, r, "logout", err)
		return
	}
	h.metrics.RecordAuth("logout", "")
	http.SetCookie(w, clearedRefreshCookie(h.secure))
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenQuery(r)
	if err != nil {
		h.fail(w, r, "verify_email", err)
		return
	}
	if err := h.auth.VerifyEmail(r.Context(), token); err != nil {
		h.fail(w, r, "verify_email", err)
		return
	}
	h.metrics.RecordAuth("verify_email", "")
	writeMessage(w, http.StatusOK, "Account verified successfully")
}

func (h *handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req validate.EmailRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "resend_verification", err)
		return
	}
	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		h.fail(w, r, "resend_verification", err)
		return
	}
	h.metrics.RecordAuth("resend_verification", "")
	writeMessage(w, http.StatusOK, "New verification email sent")
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req validate.EmailRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "forgot_password", err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, "forgot_password", err)
		return
	}
	h.metrics.RecordAuth("forgot_password", "")
	writeMessage(w, http.StatusOK, "If the email exists, a reset link was sent")
}

func (h *handler) verifyResetToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenQuery(r)
	if err != nil {
		h.fail(w, r, "verify_reset_token", err)
		return
	}
	if err := h.auth.VerifyResetToken(r.Context(), token); err != nil {
		h.fail(w, r, "verify_reset_token", err)
		return
	}
	h.metrics.RecordAuth("verify_reset_token", "")
	writeMessage(w, http.StatusOK, "Token is valid")
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenQuery(r)
	if err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}
	var req validate.NewPasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), token, req.NewPassword); err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}
	h.metrics.RecordAuth("reset_password", "")
	writeMessage(w, http.StatusOK, "Password has been reset")
}

// decode reads and validates a JSON request body.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	return h.validator.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), dst)
}

// tokenQuery validates the ?token= parameter.
func (h *handler) tokenQuery(r *http.Request) (string, error) {
	q := validate.TokenQuery{Token: r.URL.Query().Get("token")}
	if err := h.validator.Struct(q); err != nil {
		return "", err
	}
	return q.Token, nil
}

// fail counts a failed auth operation and writes the error response.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	result := errutil.Code(err)
	if result == "" {
		result = "error"
	}
	h.metrics.RecordAuth(operation, result)
	writeError(w, r, h.logger, err)
}
