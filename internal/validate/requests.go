// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package validate

// RegisterRequest is the body of POST /api/users/register.
type RegisterRequest struct {
	Username string `json:"username" jsonschema:"minLength=1,maxLength=12"`
	Email    string `json:"email" jsonschema:"format=email"`
	Password string `json:"password" jsonschema:"minLength=8"`
}

// LoginRequest is the body of POST /api/users/login.
type LoginRequest struct {
	Email      string `json:"email" jsonschema:"format=email"`
	Password   string `json:"password" jsonschema:"minLength=8"`
	RememberMe *bool  `json:"rememberMe"`
}

// EmailRequest carries a single address, for resend-verification and
// forgot-password.
type EmailRequest struct {
	Email string `json:"email" jsonschema:"format=email"`
}

// NewPasswordRequest is the body of POST /api/users/reset-password.
type NewPasswordRequest struct {
	NewPassword string `json:"newPassword" jsonschema:"minLength=8"`
}

// TokenQuery is the ?token= query parameter of the challenge endpoints.
type TokenQuery struct {
	Token string `json:"token" jsonschema:"pattern=^[0-9a-fA-F]{64}$"`
}

// ContactRequest is the body of contact create and update.
type ContactRequest struct {
	Name  string `json:"name" jsonschema:"minLength=1"`
	Email string `json:"email" jsonschema:"format=email"`
	Phone string `json:"phone" jsonschema:"minLength=1"`
}

// ContactIDParam is the {id} path parameter of the contact routes.
type ContactIDParam struct {
	ID string `json:"id" jsonschema:"pattern=^[0-9A-HJKMNP-TV-Za-hjkmnp-tv-z]{26}$"`
}
