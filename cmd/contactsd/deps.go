// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luan-services/contactsd/internal/control"
	"github.com/luan-services/contactsd/internal/observability"
	"github.com/luan-services/contactsd/internal/store"
	"github.com/luan-services/contactsd/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, cfg store.PoolConfig) (Database, error)

	// MigratorFactory creates the migrator used when auto-migrate is on.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (AutoMigrator, error)

	// ControlServerFactory creates a control gRPC server.
	// Default: control.NewGRPCServer
	ControlServerFactory func(component string, readiness control.ReadinessChecker) (ControlServer, error)

	// ControlTLSLoader loads the control server certificate.
	// Default: control.LoadServerTLS
	ControlTLSLoader func(certFile, keyFile string) (*cryptotls.Config, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker) ObservabilityServer

	// HTTPServerFactory creates the API server.
	// Default: web.NewServer
	HTTPServerFactory func(addr string, handler http.Handler) HTTPServer
}

// Database wraps the methods used from *pgxpool.Pool. It satisfies both
// repository Querier interfaces.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator wraps the methods used from store.Migrator at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ControlServer wraps the methods used from control.GRPCServer.
type ControlServer interface {
	Start(addr string, tlsConfig *cryptotls.Config) (<-chan error, error)
	Stop(ctx context.Context) error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	Registry() prometheus.Registerer
}

// HTTPServer wraps the methods used from web.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Compile-time checks that the defaults satisfy the interfaces.
var (
	_ AutoMigrator        = (*store.Migrator)(nil)
	_ ControlServer       = (*control.GRPCServer)(nil)
	_ ObservabilityServer = (*observability.Server)(nil)
	_ HTTPServer          = (*web.Server)(nil)
)
