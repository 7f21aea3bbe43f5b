// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package mail delivers auth.Message values over SMTP, or to the log
// during local development.
package mail

import (
	"bytes"
	"mime"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/auth"
)

// Drivers accepted by the mail.driver setting.
const (
	DriverSMTP = "smtp"
	DriverLog  = "log"
)

// buildMessage renders msg as an RFC 5322 message with an HTML body.
func buildMessage(from string, msg auth.Message, now time.Time) ([]byte, error) {
	for name, v := range map[string]string{"from": from, "to": msg.To, "subject": msg.Subject} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, oops.Code("MAIL_INVALID_MESSAGE").With("header", name).Errorf("header contains a line break")
		}
	}

	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.HTMLBody, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes(), nil
}
