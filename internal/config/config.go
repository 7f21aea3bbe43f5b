// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package config loads contactsd settings from flag defaults, an optional
// YAML file, command-line flags and the environment, in that order of
// increasing precedence.
package config

import (
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/luan-services/contactsd/internal/logging"
	"github.com/luan-services/contactsd/internal/mail"
)

// MinSecretLength is the minimum accepted length of a signing secret, in bytes.
const MinSecretLength = 32

const redacted = "[REDACTED]"

// Limiter drivers.
const (
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Config is the complete process configuration. It is built once by Load
// and passed down explicitly.
type Config struct {
	HTTPAddr    string `koanf:"http_addr" yaml:"http_addr"`
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr"`
	ControlAddr string `koanf:"control_addr" yaml:"control_addr"`

	ControlTLSCert string `koanf:"control_tls_cert" yaml:"control_tls_cert"`
	ControlTLSKey  string `koanf:"control_tls_key" yaml:"control_tls_key"`

	// Production marks refresh cookies Secure.
	Production bool   `koanf:"production" yaml:"production"`
	WebsiteURL string `koanf:"website_url" yaml:"website_url" env:"CONTACTSD_WEBSITE_URL"`

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a proxy that sets those headers.
	TrustProxy bool `koanf:"trust_proxy" yaml:"trust_proxy"`

	Log       LogConfig       `koanf:"log" yaml:"log"`
	Database  DatabaseConfig  `koanf:"database" yaml:"database"`
	Tokens    TokenConfig     `koanf:"tokens" yaml:"tokens"`
	Challenge ChallengeConfig `koanf:"challenge" yaml:"challenge"`
	Mail      MailConfig      `koanf:"mail" yaml:"mail"`
	Limiter   LimiterConfig   `koanf:"limiter" yaml:"limiter"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" yaml:"url" env:"DATABASE_URL"`
	MaxConns        int32         `koanf:"max_conns" yaml:"max_conns"`
	ConnectAttempts uint64        `koanf:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff" yaml:"connect_backoff"`

	// AutoMigrate applies pending migrations when serve starts.
	AutoMigrate bool `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// TokenConfig holds the credential signing secrets and lifetimes.
type TokenConfig struct {
	AccessSecret  string        `koanf:"access_secret" yaml:"access_secret" env:"CONTACTSD_ACCESS_TOKEN_SECRET"`
	RefreshSecret string        `koanf:"refresh_secret" yaml:"refresh_secret" env:"CONTACTSD_REFRESH_TOKEN_SECRET"`
	AccessTTL     time.Duration `koanf:"access_ttl" yaml:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl" yaml:"refresh_ttl"`
}

// ChallengeConfig tunes email challenges.
type ChallengeConfig struct {
	VerificationTTL time.Duration `koanf:"verification_ttl" yaml:"verification_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl" yaml:"reset_ttl"`
	Window          time.Duration `koanf:"window" yaml:"window"`
}

// MailConfig selects and configures the mail dispatcher.
type MailConfig struct {
	Driver   string        `koanf:"driver" yaml:"driver"`
	Host     string        `koanf:"host" yaml:"host"`
	Port     int           `koanf:"port" yaml:"port"`
	Username string        `koanf:"username" yaml:"username"`
	Password string        `koanf:"password" yaml:"password" env:"CONTACTSD_SMTP_PASSWORD"`
	From     string        `koanf:"from" yaml:"from"`
	Timeout  time.Duration `koanf:"timeout" yaml:"timeout"`
}

// LimiterConfig selects and configures the login rate limiter.
type LimiterConfig struct {
	Driver   string        `koanf:"driver" yaml:"driver"`
	RedisURL string        `koanf:"redis_url" yaml:"redis_url" env:"REDIS_URL"`
	Window   time.Duration `koanf:"window" yaml:"window"`
	Limit    int           `koanf:"limit" yaml:"limit"`
}

// Load builds a Config from flags, which must carry the flags registered
// by RegisterFlags. When the "config" flag names a file it is read as YAML.
// Flags the user did not set only fill keys the file left empty.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if f := flags.Lookup(FlagConfigFile); f != nil && f.Value.String() != "" {
		path := f.Value.String()
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
		}
	}

	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "parse env").Wrap(err)
	}

	return &cfg, nil
}

// Validate reports the first setting that would prevent the server from
// starting.
func (c *Config) Validate() error {
	if err := validateSecret("tokens.access_secret", c.Tokens.AccessSecret); err != nil {
		return err
	}
	if err := validateSecret("tokens.refresh_secret", c.Tokens.RefreshSecret); err != nil {
		return err
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return oops.Code("CONFIG_INVALID").Errorf("access and refresh secrets must differ")
	}

	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		return oops.Code("CONFIG_INVALID").With("log.format", c.Log.Format).
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("log.level", c.Log.Level).
			Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.DatabaseURL() == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (DATABASE_URL) is required")
	}
	if c.WebsiteURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("website_url (CONTACTSD_WEBSITE_URL) is required")
	}
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http_addr is required")
	}

	switch c.Mail.Driver {
	case mail.DriverLog:
	case mail.DriverSMTP:
		if c.Mail.Host == "" {
			return oops.Code("CONFIG_INVALID").Errorf("mail.host is required for the smtp driver")
		}
	default:
		return oops.Code("CONFIG_INVALID").With("mail.driver", c.Mail.Driver).
			Errorf("mail.driver must be 'smtp' or 'log', got %q", c.Mail.Driver)
	}

	switch c.Limiter.Driver {
	case LimiterMemory:
	case LimiterRedis:
		if c.Limiter.RedisURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("limiter.redis_url (REDIS_URL) is required for the redis driver")
		}
	default:
		return oops.Code("CONFIG_INVALID").With("limiter.driver", c.Limiter.Driver).
			Errorf("limiter.driver must be 'memory' or 'redis', got %q", c.Limiter.Driver)
	}

	if (c.ControlTLSCert == "") != (c.ControlTLSKey == "") {
		return oops.Code("CONFIG_INVALID").Errorf("control_tls_cert and control_tls_key must be set together")
	}
	return nil
}

// DatabaseURL returns the configured DSN.
func (c *Config) DatabaseURL() string {
	return c.Database.URL
}

func validateSecret(name, secret string) error {
	if secret == "" {
		return oops.Code("CONFIG_INVALID").With("setting", name).Errorf("%s is required", name)
	}
	if len(secret) < MinSecretLength {
		return oops.Code("CONFIG_INVALID").With("setting", name).
			Errorf("%s must be at least %d bytes", name, MinSecretLength)
	}
	return nil
}

// Redacted returns a copy with secrets masked and the database and Redis
// URL passwords hidden.
func (c *Config) Redacted() Config {
	out := *c
	for _, s := range []*string{&out.Tokens.AccessSecret, &out.Tokens.RefreshSecret, &out.Mail.Password} {
		if *s != "" {
			*s = redacted
		}
	}
	out.Database.URL = redactURL(out.Database.URL)
	out.Limiter.RedisURL = redactURL(out.Limiter.RedisURL)
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()
	data, err := yamlv3.Marshal(&r)
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return data, nil
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}
