// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package mail

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/auth"
)

// DefaultTimeout bounds the whole SMTP exchange, dial included.
const DefaultTimeout = 10 * time.Second

// SMTPConfig configures SMTPDispatcher.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPDispatcher sends mail through an SMTP relay. STARTTLS is used when
// the server offers it; PLAIN auth is used when a username is configured.
type SMTPDispatcher struct {
	cfg  SMTPConfig
	addr string
	auth smtp.Auth
	now  func() time.Time
}

// NewSMTPDispatcher validates cfg and creates a dispatcher.
func NewSMTPDispatcher(cfg SMTPConfig) (*SMTPDispatcher, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port out of range")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("sender address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	d := &SMTPDispatcher{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		now:  time.Now,
	}
	if cfg.Username != "" {
		d.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return d, nil
}

// Send delivers msg. The exchange is abandoned when ctx is done or the
// configured timeout elapses, whichever comes first.
func (d *SMTPDispatcher) Send(ctx context.Context, msg auth.Message) error {
	body, err := buildMessage(d.cfg.From, msg, d.now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	dialer := net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return oops.Code("MAIL_DIAL_FAILED").With("addr", d.addr).Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return oops.Code("MAIL_SEND_FAILED").With("operation", "greeting").Wrap(err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: d.cfg.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsCfg); err != nil {
			return oops.Code("MAIL_SEND_FAILED").With("operation", "starttls").Wrap(err)
		}
	}

	if d.auth != nil {
		if err := client.Auth(d.auth); err != nil {
			return oops.Code("MAIL_SEND_FAILED").With("operation", "auth").Wrap(err)
		}
	}

	if err := client.Mail(d.cfg.From); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "mail from").Wrap(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "rcpt to").Wrap(err)
	}

	w, err := client.Data()
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "data").Wrap(err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return oops.Code("MAIL_SEND_FAILED").With("operation", "write body").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "end data").Wrap(err)
	}

	if err := client.Quit(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "quit").Wrap(err)
	}
	return nil
}

var _ auth.Mailer = (*SMTPDispatcher)(nil)
