// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package main

import (
	"bytes"
	"context"
	cryptotls "crypto/tls"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luan-services/contactsd/internal/config"
	"github.com/luan-services/contactsd/internal/control"
	"github.com/luan-services/contactsd/internal/mail"
	"github.com/luan-services/contactsd/internal/observability"
	"github.com/luan-services/contactsd/internal/ratelimit"
	"github.com/luan-services/contactsd/internal/store"
	"github.com/luan-services/contactsd/pkg/errutil"
)

type mockMigrator struct {
	upCalled    bool
	upError     error
	closeCalled bool
}

func (m *mockMigrator) Up() error {
	m.upCalled = true
	return m.upError
}

func (m *mockMigrator) Close() error {
	m.closeCalled = true
	return nil
}

type mockServer struct {
	startErr    error
	started     bool
	stopCalled  bool
	errCh       chan error
	startedAddr string
	tlsConfig   *cryptotls.Config
}

func newMockServer() *mockServer {
	return &mockServer{errCh: make(chan error, 1)}
}

func (m *mockServer) Start() (<-chan error, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = true
	return m.errCh, nil
}

func (m *mockServer) Stop(context.Context) error {
	m.stopCalled = true
	return nil
}

func (m *mockServer) Addr() string { return "127.0.0.1:0" }

type mockControlServer struct {
	mockServer
}

func (m *mockControlServer) Start(addr string, tlsConfig *cryptotls.Config) (<-chan error, error) {
	m.startedAddr = addr
	m.tlsConfig = tlsConfig
	return m.mockServer.Start()
}

type mockObservabilityServer struct {
	mockServer
	registry *prometheus.Registry
	metrics  *observability.Metrics
}

func newMockObservabilityServer() *mockObservabilityServer {
	reg := prometheus.NewRegistry()
	return &mockObservabilityServer{
		mockServer: mockServer{errCh: make(chan error, 1)},
		registry:   reg,
		metrics:    observability.NewMetrics(reg),
	}
}

func (m *mockObservabilityServer) Metrics() *observability.Metrics { return m.metrics }
func (m *mockObservabilityServer) Registry() prometheus.Registerer { return m.registry }

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:    "127.0.0.1:0",
		MetricsAddr: "127.0.0.1:0",
		ControlAddr: "127.0.0.1:0",
		WebsiteURL:  "http://localhost:5173",
		Log:         config.LogConfig{Format: "text", Level: "error"},
		Database:    config.DatabaseConfig{URL: "postgres://contactsd@localhost/contactsd", AutoMigrate: true},
		Tokens: config.TokenConfig{
			AccessSecret:  strings.Repeat("a", config.MinSecretLength),
			RefreshSecret: strings.Repeat("r", config.MinSecretLength),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
		},
		Mail:    config.MailConfig{Driver: mail.DriverLog},
		Limiter: config.LimiterConfig{Driver: config.LimiterMemory, Window: time.Minute, Limit: 5},
	}
}

type serveHarness struct {
	deps     *ServeDeps
	migrator *mockMigrator
	http     *mockServer
	obs      *mockObservabilityServer
	control  *mockControlServer

	migratorCreated bool
	controlCreated  bool
	dbURL           string
}

func newServeHarness(t *testing.T) *serveHarness {
	t.Helper()
	h := &serveHarness{
		migrator: &mockMigrator{},
		http:     newMockServer(),
		obs:      newMockObservabilityServer(),
		control:  &mockControlServer{mockServer: mockServer{errCh: make(chan error, 1)}},
	}
	h.deps = &ServeDeps{
		DatabaseFactory: func(_ context.Context, url string, _ store.PoolConfig) (Database, error) {
			h.dbURL = url
			pool, err := pgxmock.NewPool()
			require.NoError(t, err)
			return pool, nil
		},
		MigratorFactory: func(string) (AutoMigrator, error) {
			h.migratorCreated = true
			return h.migrator, nil
		},
		ControlServerFactory: func(component string, _ control.ReadinessChecker) (ControlServer, error) {
			h.controlCreated = true
			assert.Equal(t, serviceName, component)
			return h.control, nil
		},
		ControlTLSLoader: func(string, string) (*cryptotls.Config, error) {
			return &cryptotls.Config{MinVersion: cryptotls.VersionTLS13}, nil
		},
		ObservabilityServerFactory: func(string, observability.ReadinessChecker) ObservabilityServer {
			return h.obs
		},
		HTTPServerFactory: func(string, http.Handler) HTTPServer {
			return h.http
		},
	}
	return h
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func testCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	return cmd, buf
}

func TestRunServe_StartsAndStopsEverything(t *testing.T) {
	h := newServeHarness(t)
	cmd, out := testCmd()

	err := runServeWithDeps(cancelledContext(), cmd, testConfig(), h.deps)
	require.NoError(t, err)

	assert.Equal(t, "postgres://contactsd@localhost/contactsd", h.dbURL)
	assert.True(t, h.migrator.upCalled)
	assert.True(t, h.migrator.closeCalled)
	assert.True(t, h.http.started)
	assert.True(t, h.http.stopCalled)
	assert.True(t, h.obs.started)
	assert.True(t, h.obs.stopCalled)
	assert.True(t, h.control.started)
	assert.True(t, h.control.stopCalled)
	assert.Nil(t, h.control.tlsConfig)
	assert.Contains(t, out.String(), "contactsd started")
}

func TestRunServe_AutoMigrateDisabled(t *testing.T) {
	h := newServeHarness(t)
	cfg := testConfig()
	cfg.Database.AutoMigrate = false
	cmd, _ := testCmd()

	require.NoError(t, runServeWithDeps(cancelledContext(), cmd, cfg, h.deps))
	assert.False(t, h.migratorCreated)
}

func TestRunServe_MigrationFailureStopsStartup(t *testing.T) {
	h := newServeHarness(t)
	h.migrator.upError = errors.New("dirty database version 3")
	cmd, _ := testCmd()

	err := runServeWithDeps(cancelledContext(), cmd, testConfig(), h.deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database version 3")
	assert.True(t, h.migrator.closeCalled)
	assert.False(t, h.http.started)
}

func TestRunServe_InvalidConfig(t *testing.T) {
	h := newServeHarness(t)
	cfg := testConfig()
	cfg.Tokens.RefreshSecret = cfg.Tokens.AccessSecret
	cmd, _ := testCmd()

	err := runServeWithDeps(cancelledContext(), cmd, cfg, h.deps)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Empty(t, h.dbURL)
}

func TestRunServe_DatabaseFailure(t *testing.T) {
	h := newServeHarness(t)
	h.deps.DatabaseFactory = func(context.Context, string, store.PoolConfig) (Database, error) {
		return nil, errors.New("connection refused")
	}
	cmd, _ := testCmd()

	err := runServeWithDeps(cancelledContext(), cmd, testConfig(), h.deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, h.http.started)
}

func TestRunServe_ObservabilityStartFailureStopsHTTP(t *testing.T) {
	h := newServeHarness(t)
	h.obs.startErr = errors.New("address already in use")
	cmd, _ := testCmd()

	err := runServeWithDeps(cancelledContext(), cmd, testConfig(), h.deps)
	require.Error(t, err)
	assert.True(t, h.http.stopCalled)
	assert.False(t, h.controlCreated)
}

func TestRunServe_OptionalServersDisabled(t *testing.T) {
	h := newServeHarness(t)
	cfg := testConfig()
	cfg.MetricsAddr = ""
	cfg.ControlAddr = ""
	cmd, _ := testCmd()

	require.NoError(t, runServeWithDeps(cancelledContext(), cmd, cfg, h.deps))
	assert.True(t, h.http.started)
	assert.False(t, h.obs.started)
	assert.False(t, h.controlCreated)
}

func TestRunServe_ControlTLS(t *testing.T) {
	h := newServeHarness(t)
	cfg := testConfig()
	cfg.ControlTLSCert = "/etc/contactsd/control.crt"
	cfg.ControlTLSKey = "/etc/contactsd/control.key"

	var gotCert, gotKey string
	h.deps.ControlTLSLoader = func(certFile, keyFile string) (*cryptotls.Config, error) {
		gotCert, gotKey = certFile, keyFile
		return &cryptotls.Config{MinVersion: cryptotls.VersionTLS13}, nil
	}
	cmd, _ := testCmd()

	require.NoError(t, runServeWithDeps(cancelledContext(), cmd, cfg, h.deps))
	assert.Equal(t, cfg.ControlTLSCert, gotCert)
	assert.Equal(t, cfg.ControlTLSKey, gotKey)
	assert.NotNil(t, h.control.tlsConfig)
}

func TestRunServe_ServerErrorTriggersShutdown(t *testing.T) {
	h := newServeHarness(t)
	h.http.errCh <- errors.New("serve failed")
	cmd, _ := testCmd()

	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(context.Background(), cmd, testConfig(), h.deps)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down after a server error")
	}
	assert.True(t, h.http.stopCalled)
}

func TestNewLoginLimiter(t *testing.T) {
	obs := newMockObservabilityServer()
	logger := discardLogger()

	t.Run("memory", func(t *testing.T) {
		l, closeFn, err := newLoginLimiter(context.Background(),
			config.LimiterConfig{Driver: config.LimiterMemory, Window: time.Minute, Limit: 2}, obs, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &ratelimit.MemoryLimiter{}, l)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		l, closeFn, err := newLoginLimiter(context.Background(),
			config.LimiterConfig{Driver: config.LimiterRedis, RedisURL: "redis://" + mr.Addr(), Window: time.Minute, Limit: 1},
			obs, logger)
		require.NoError(t, err)
		defer closeFn()

		d, err := l.Allow(context.Background(), "login:203.0.113.9")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		d, err = l.Allow(context.Background(), "login:203.0.113.9")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("bad redis url", func(t *testing.T) {
		_, _, err := newLoginLimiter(context.Background(),
			config.LimiterConfig{Driver: config.LimiterRedis, RedisURL: "://nope"}, obs, logger)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}

func TestNewMailer(t *testing.T) {
	logger := discardLogger()

	m, err := newMailer(config.MailConfig{Driver: mail.DriverLog}, logger)
	require.NoError(t, err)
	assert.IsType(t, &mail.LogDispatcher{}, m)

	m, err = newMailer(config.MailConfig{
		Driver: mail.DriverSMTP, Host: "smtp.example.com", Port: 587, From: "no-reply@example.com",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &mail.SMTPDispatcher{}, m)

	_, err = newMailer(config.MailConfig{Driver: mail.DriverSMTP, Host: "smtp.example.com", Port: 0, From: "x@example.com"}, logger)
	errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
}

func TestMonitorServerErrors(t *testing.T) {
	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("boom")

		monitorServerErrors(ctx, cancel, errCh, "test")
		assert.Error(t, ctx.Err())
	})

	t.Run("closed channel does not cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "test")
		assert.NoError(t, ctx.Err())
	})
}
