// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package control provides the gRPC control plane: the standard
// grpc.health.v1 service driven by the process readiness check.
package control

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultCheckInterval is how often readiness is re-evaluated.
const DefaultCheckInterval = 5 * time.Second

// ReadinessChecker reports whether the process can serve requests.
type ReadinessChecker func() bool

// GRPCServer serves grpc.health.v1.Health. Both the empty service name and
// the component name report SERVING while the readiness check passes.
type GRPCServer struct {
	component string
	isReady   ReadinessChecker
	interval  time.Duration

	health     *health.Server
	listener   net.Listener
	grpcServer *grpc.Server
	running    atomic.Bool

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewGRPCServer creates a control server. A nil checker is always ready;
// a non-positive interval uses DefaultCheckInterval.
func NewGRPCServer(component string, isReady ReadinessChecker, interval time.Duration) (*GRPCServer, error) {
	if component == "" {
		return nil, oops.Code("CONTROL_INVALID").Errorf("component name cannot be empty")
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	s := &GRPCServer{
		component: component,
		isReady:   isReady,
		interval:  interval,
		health:    health.NewServer(),
		stopChan:  make(chan struct{}),
	}
	s.refresh()
	return s, nil
}

// Start begins listening on addr. A nil tlsConfig serves plaintext.
// It returns an error channel that receives the server's exit error (or nil
// on graceful stop) exactly once.
func (s *GRPCServer) Start(addr string, tlsConfig *cryptotls.Config) (<-chan error, error) {
	// Prevent double-start which would leak the first listener
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("CONTROL_ALREADY_RUNNING").Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("CONTROL_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	var opts []grpc.ServerOption
	if tlsConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}
	s.grpcServer = grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.wg.Add(1)
	go s.watch()

	errCh := make(chan error, 1)
	go func() {
		err := s.grpcServer.Serve(listener)
		if err != nil {
			slog.Error("control gRPC server error",
				"component", s.component,
				"error", err,
			)
		}
		errCh <- err
	}()

	slog.Info("control server started", "addr", listener.Addr().String(), "tls", tlsConfig != nil)
	return errCh, nil
}

// Addr returns the listening address, or "" before Start.
func (s *GRPCServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stop marks every service NOT_SERVING and gracefully stops the server.
func (s *GRPCServer) Stop(_ context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	s.health.Shutdown()
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	s.running.Store(false)
	return nil
}

func (s *GRPCServer) watch() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-s.stopChan:
			return
		}
	}
}

func (s *GRPCServer) refresh() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.isReady != nil && !s.isReady() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.component, status)
}

// LoadServerTLS loads a certificate/key pair for the control server.
func LoadServerTLS(certFile, keyFile string) (*cryptotls.Config, error) {
	cert, err := cryptotls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, oops.Code("CONTROL_TLS_INVALID").
			With("cert", certFile).
			With("key", keyFile).
			Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS13,
	}, nil
}

// CheckHealth queries the health service at addr. A nil tlsConfig dials
// plaintext.
func CheckHealth(ctx context.Context, addr, service string, tlsConfig *cryptotls.Config) (*healthpb.HealthCheckResponse, error) {
	creds := insecure.NewCredentials()
	if tlsConfig != nil {
		creds = credentials.NewTLS(tlsConfig)
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, oops.Code("CONTROL_DIAL_FAILED").With("addr", addr).Wrap(err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return nil, oops.Code("CONTROL_CHECK_FAILED").With("addr", addr).With("service", service).Wrap(err)
	}
	return resp, nil
}
