// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/luan-services/contactsd/internal/control"
)

// ServiceStatus is the result of one health query.
type ServiceStatus struct {
	Service string `json:"service"`
	Addr    string `json:"addr"`
	Health  string `json:"health,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Serving reports whether the service answered SERVING.
func (s ServiceStatus) Serving() bool {
	return s.Health == healthpb.HealthCheckResponse_SERVING.String()
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	tlsCA      string
	timeout    time.Duration
	jsonOutput bool
}

// checkHealth is replaced in tests.
var checkHealth = control.CheckHealth

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running server's health",
		Long: `Query the control gRPC health service of a running contactsd. Exits
non-zero unless the server reports SERVING.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "control address (default: control_addr from config)")
	cmd.Flags().StringVar(&cfg.tlsCA, "tls-ca", "", "CA bundle for a TLS control server (empty = plaintext)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 3*time.Second, "query timeout")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	addr := cfg.addr
	if addr == "" {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr = loaded.ControlAddr
	}
	if addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("no control address: pass --addr or set control_addr")
	}

	tlsConfig, err := loadClientTLS(cfg.tlsCA)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, cfg.timeout)
	defer cancel()
	status := queryStatus(ctx, addr, tlsConfig)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.With("operation", "marshal status").Wrap(err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Print(formatStatusTable(status))
	}

	if !status.Serving() {
		return oops.Code("NOT_SERVING").With("addr", addr).Errorf("%s is not serving", serviceName)
	}
	return nil
}

func queryStatus(ctx context.Context, addr string, tlsConfig *cryptotls.Config) ServiceStatus {
	status := ServiceStatus{Service: serviceName, Addr: addr}
	resp, err := checkHealth(ctx, addr, serviceName, tlsConfig)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Health = resp.GetStatus().String()
	return status
}

func formatStatusTable(s ServiceStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SERVICE\tADDR\tHEALTH")
	health := s.Health
	if s.Error != "" {
		health = "unreachable: " + s.Error
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Service, s.Addr, health)

	_ = w.Flush()
	return string(buf)
}

// loadClientTLS returns nil for an empty path.
func loadClientTLS(caFile string) (*cryptotls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caFile) //nolint:gosec // path comes from the operator's flag
	if err != nil {
		return nil, oops.Code("TLS_CA_INVALID").With("file", caFile).Wrap(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, oops.Code("TLS_CA_INVALID").With("file", caFile).Errorf("no certificates found")
	}
	return &cryptotls.Config{RootCAs: pool, MinVersion: cryptotls.VersionTLS13}, nil
}

// byteWriter is a simple io.Writer that appends to a byte slice.
type byteWriter []byte

func (b *byteWriter) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
