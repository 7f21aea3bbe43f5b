// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"

	"github.com/luan-services/contactsd/internal/auth"
	"github.com/luan-services/contactsd/internal/mail"
	"github.com/luan-services/contactsd/internal/ratelimit"
)

// FlagConfigFile names the YAML config file flag.
const FlagConfigFile = "config"

// Defaults. They reach the Config as flag defaults.
const (
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultControlAddr = "127.0.0.1:9001"
	DefaultWebsiteURL  = "http://localhost:5173"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
	DefaultSMTPPort    = 587
	DefaultMailFrom    = "no-reply@contactsd.local"
)

// RegisterFlags adds every setting as a flag. Flag names are koanf keys
// with underscores spelled as dashes, e.g. --mail.driver, --http-addr.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("control-addr", DefaultControlAddr, "control gRPC listen address (empty = disabled)")
	fs.String("control-tls-cert", "", "control server TLS certificate file")
	fs.String("control-tls-key", "", "control server TLS key file")
	fs.Bool("production", false, "production mode (Secure cookies)")
	fs.Bool("trust-proxy", false, "derive client IP from proxy headers")
	fs.String("website-url", DefaultWebsiteURL, "front-end origin used in email links")

	fs.String("log.format", DefaultLogFormat, "log format (json or text)")
	fs.String("log.level", DefaultLogLevel, "log level (debug, info, warn, error)")

	fs.String("database.url", "", "PostgreSQL DSN (or DATABASE_URL)")
	fs.Int32("database.max-conns", 10, "maximum pool connections")
	fs.Uint64("database.connect-attempts", 5, "database connect attempts at startup")
	fs.Duration("database.connect-backoff", 500*time.Millisecond, "initial database connect backoff")
	fs.Bool("database.auto-migrate", true, "apply pending migrations on serve startup")

	fs.Duration("tokens.access-ttl", auth.DefaultAccessTTL, "access credential lifetime")
	fs.Duration("tokens.refresh-ttl", auth.DefaultRefreshTTL, "refresh credential lifetime")

	fs.Duration("challenge.verification-ttl", auth.DefaultVerificationTTL, "email verification link lifetime")
	fs.Duration("challenge.reset-ttl", auth.DefaultResetTTL, "password reset link lifetime")
	fs.Duration("challenge.window", auth.DefaultChallengeWindow, "challenge email cooldown window")

	fs.String("mail.driver", mail.DriverLog, "mail driver (smtp or log)")
	fs.String("mail.host", "", "SMTP host")
	fs.Int("mail.port", DefaultSMTPPort, "SMTP port")
	fs.String("mail.username", "", "SMTP username (empty = no auth)")
	fs.String("mail.from", DefaultMailFrom, "sender address")
	fs.Duration("mail.timeout", mail.DefaultTimeout, "SMTP exchange timeout")

	fs.String("limiter.driver", LimiterMemory, "login rate limiter backend (memory or redis)")
	fs.String("limiter.redis-url", "", "Redis URL for the redis limiter (or REDIS_URL)")
	fs.Duration("limiter.window", ratelimit.DefaultWindow, "login rate limit window")
	fs.Int("limiter.limit", ratelimit.DefaultLimit, "login attempts allowed per window")
}

// flagKey maps a flag to its koanf key. Flags that are not settings are
// skipped.
func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		switch f.Name {
		case FlagConfigFile, "help", "version":
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}
}
