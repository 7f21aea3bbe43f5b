// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/luan-services/contactsd/internal/auth"
	authpg "github.com/luan-services/contactsd/internal/auth/postgres"
	"github.com/luan-services/contactsd/internal/config"
	"github.com/luan-services/contactsd/internal/contacts"
	contactspg "github.com/luan-services/contactsd/internal/contacts/postgres"
	"github.com/luan-services/contactsd/internal/control"
	"github.com/luan-services/contactsd/internal/logging"
	"github.com/luan-services/contactsd/internal/mail"
	"github.com/luan-services/contactsd/internal/observability"
	"github.com/luan-services/contactsd/internal/ratelimit"
	"github.com/luan-services/contactsd/internal/store"
	"github.com/luan-services/contactsd/internal/validate"
	"github.com/luan-services/contactsd/internal/web"
)

const (
	shutdownTimeout  = 5 * time.Second
	readinessTimeout = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long: `Run the HTTP API together with the metrics endpoint and the
control gRPC health service. Pending migrations are applied first unless
--database.auto-migrate=false.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cmd, cfg, nil)
		},
	}
}

func (d *ServeDeps) withDefaults() {
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = func(ctx context.Context, url string, cfg store.PoolConfig) (Database, error) {
			return store.Connect(ctx, url, cfg, slog.Default())
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if d.ControlServerFactory == nil {
		d.ControlServerFactory = func(component string, readiness control.ReadinessChecker) (ControlServer, error) {
			return control.NewGRPCServer(component, readiness, control.DefaultCheckInterval)
		}
	}
	if d.ControlTLSLoader == nil {
		d.ControlTLSLoader = control.LoadServerTLS
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readiness)
		}
	}
	if d.HTTPServerFactory == nil {
		d.HTTPServerFactory = func(addr string, handler http.Handler) HTTPServer {
			return web.NewServer(addr, handler)
		}
	}
}

// runServeWithDeps wires every component and blocks until a signal
// arrives, ctx is cancelled, or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate config").Wrap(err)
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	logger.Info("starting contactsd",
		"http_addr", cfg.HTTPAddr,
		"mail_driver", cfg.Mail.Driver,
		"limiter_driver", cfg.Limiter.Driver,
	)

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL(), store.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		ConnectBackoff:  cfg.Database.ConnectBackoff,
	})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(deps.MigratorFactory, cfg.DatabaseURL()); err != nil {
			return err
		}
	}

	ready := func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return db.Ping(pingCtx) == nil
	}

	// The observability server owns the metrics registry, so it is built
	// even when it will not listen.
	obsServer := deps.ObservabilityServerFactory(cfg.MetricsAddr, ready)

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte(cfg.Tokens.AccessSecret),
		RefreshSecret: []byte(cfg.Tokens.RefreshSecret),
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		Issuer:        serviceName,
	})
	if err != nil {
		return oops.With("operation", "create credential issuer").Wrap(err)
	}

	mailer, err := newMailer(cfg.Mail, logger)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newLoginLimiter(ctx, cfg.Limiter, obsServer, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	authService, err := auth.NewServiceWithLogger(
		authpg.NewAccountRepository(db),
		auth.NewArgon2idHasher(),
		issuer,
		mailer,
		auth.Config{
			WebsiteURL:      cfg.WebsiteURL,
			VerificationTTL: cfg.Challenge.VerificationTTL,
			ResetTTL:        cfg.Challenge.ResetTTL,
			ChallengeWindow: cfg.Challenge.Window,
		},
		logger,
	)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	contactService, err := contacts.NewService(contactspg.NewContactRepository(db), logger)
	if err != nil {
		return oops.With("operation", "create contact service").Wrap(err)
	}

	router, err := web.NewRouter(web.Deps{
		Auth:         authService,
		Contacts:     contactService,
		LoginLimiter: limiter,
		Validator:    validate.New(),
		Metrics:      obsServer.Metrics(),
		Logger:       logger,
		Production:   cfg.Production,
		TrustProxy:   cfg.TrustProxy,
	})
	if err != nil {
		return oops.With("operation", "build router").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := deps.HTTPServerFactory(cfg.HTTPAddr, router)
	httpErrChan, err := httpServer.Start()
	if err != nil {
		return oops.With("operation", "start http server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrChan, "http")

	var started []stopper
	started = append(started, stopper{"http server", httpServer.Stop})

	if cfg.MetricsAddr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			stopAll(started)
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		started = append(started, stopper{"observability server", obsServer.Stop})
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	if cfg.ControlAddr != "" {
		controlServer, err := startControl(ctx, cancel, cfg, deps, ready)
		if err != nil {
			stopAll(started)
			return err
		}
		started = append(started, stopper{"control gRPC server", controlServer.Stop})
		logger.Info("control gRPC server started", "addr", cfg.ControlAddr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("contactsd started")
	logger.Info("contactsd ready", "http_addr", httpServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	stopAll(started)
	logger.Info("shutdown complete")
	return nil
}

type stopper struct {
	name string
	stop func(ctx context.Context) error
}

// stopAll stops servers in start order within one shutdown deadline.
func stopAll(servers []stopper) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.stop(shutdownCtx); err != nil {
			slog.Warn("error stopping server", "server", s.name, "error", err)
		}
	}
}

func startControl(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	deps *ServeDeps,
	ready control.ReadinessChecker,
) (ControlServer, error) {
	var tlsConfig *cryptotls.Config
	if cfg.ControlTLSCert != "" {
		var err error
		tlsConfig, err = deps.ControlTLSLoader(cfg.ControlTLSCert, cfg.ControlTLSKey)
		if err != nil {
			return nil, oops.With("operation", "load control TLS config").Wrap(err)
		}
	}

	server, err := deps.ControlServerFactory(serviceName, ready)
	if err != nil {
		return nil, oops.With("operation", "create control gRPC server").Wrap(err)
	}
	errChan, err := server.Start(cfg.ControlAddr, tlsConfig)
	if err != nil {
		return nil, oops.With("operation", "start control gRPC server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, errChan, "control-grpc")
	return server, nil
}

// autoMigrate applies pending migrations before the server starts.
func autoMigrate(factory func(string) (AutoMigrator, error), url string) error {
	slog.Info("running database migrations")
	migrator, err := factory(url)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.With("operation", "apply migrations").Wrap(err)
	}
	slog.Info("database migrations complete")
	return nil
}

func newMailer(cfg config.MailConfig, logger *slog.Logger) (auth.Mailer, error) {
	if cfg.Driver == mail.DriverLog {
		logger.Warn("mail driver is 'log'; challenge links are written to the log")
		return mail.NewLogDispatcher(logger), nil
	}
	d, err := mail.NewSMTPDispatcher(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, oops.With("operation", "create smtp dispatcher").Wrap(err)
	}
	return d, nil
}

// newLoginLimiter builds the configured limiter and a func releasing it.
func newLoginLimiter(
	ctx context.Context,
	cfg config.LimiterConfig,
	obs ObservabilityServer,
	logger *slog.Logger,
) (ratelimit.Limiter, func(), error) {
	rlCfg := ratelimit.Config{Window: cfg.Window, Limit: cfg.Limit}

	if cfg.Driver != config.LimiterRedis {
		l := ratelimit.NewMemoryLimiterWithRegistry(rlCfg, obs.Registry())
		return l, l.Close, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").With("setting", "limiter.redis_url").Wrap(err)
	}
	client := redis.NewClient(opts)
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The limiter fails open, so a Redis outage degrades rather than blocks logins.
		logger.Warn("redis unreachable at startup", "addr", opts.Addr, "error", err)
	}

	l, err := ratelimit.NewRedisLimiter(client, rlCfg, "")
	if err != nil {
		closeClient()
		return nil, nil, oops.With("operation", "create redis limiter").Wrap(err)
	}
	return l, closeClient, nil
}

// monitorServerErrors cancels ctx when errCh delivers a server failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
