// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package auth

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"

	"github.com/samber/oops"
)

// Message is an outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer delivers challenge emails. Email is the only channel tokens travel
// on, so a Send failure aborts the operation that requested it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const (
	verificationSubject = "Verify your email"
	resetSubject        = "Reset your password"
)

var (
	verificationTemplate = template.Must(template.New("verification").Parse(
		`<p>Welcome, {{.Username}}!</p>` +
			`<p>Confirm your email address by opening the link below. It expires in {{.Expiry}}.</p>` +
			`<p><a href="{{.Link}}">{{.Link}}</a></p>`))

	resetTemplate = template.Must(template.New("reset").Parse(
		`<p>Hello, {{.Username}}.</p>` +
			`<p>Someone asked to reset the password for this account. ` +
			`If it was you, open the link below within {{.Expiry}}; otherwise ignore this email.</p>` +
			`<p><a href="{{.Link}}">{{.Link}}</a></p>`))
)

type challengeMailData struct {
	Username string
	Link     string
	Expiry   string
}

// VerificationLink builds the email verification link for a raw token.
func VerificationLink(websiteURL, token string) string {
	return strings.TrimRight(websiteURL, "/") + "/verify?token=" + url.QueryEscape(token)
}

// ResetLink builds the password reset link for a raw token.
func ResetLink(websiteURL, token string) string {
	return strings.TrimRight(websiteURL, "/") + "/reset-password/" + url.PathEscape(token)
}

func renderChallenge(tmpl *template.Template, to, subject string, data challengeMailData) (Message, error) {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return Message{}, oops.Code("AUTH_MAIL_RENDER_FAILED").With("template", tmpl.Name()).Wrap(err)
	}
	return Message{To: to, Subject: subject, HTMLBody: body.String()}, nil
}
