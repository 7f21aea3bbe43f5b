// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package control

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/luan-services/contactsd/pkg/errutil"
)

// writeSelfSignedCert writes a localhost certificate and key to dir and
// returns their paths plus a pool trusting the certificate.
func writeSelfSignedCert(t *testing.T, dir string) (certPath, keyPath string, pool *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "contactsd-control"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,

		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "control.crt")
	keyPath = filepath.Join(dir, "control.key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	pool = x509.NewCertPool()
	pool.AddCert(cert)
	return certPath, keyPath, pool
}

func stopServer(t *testing.T, s *GRPCServer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestNewGRPCServer(t *testing.T) {
	t.Run("rejects empty component", func(t *testing.T) {
		_, err := NewGRPCServer("", nil, 0)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONTROL_INVALID")
	})

	t.Run("defaults interval", func(t *testing.T) {
		s, err := NewGRPCServer("contactsd", nil, 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultCheckInterval, s.interval)
	})
}

func TestGRPCServer_HealthPlaintext(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)

	s, err := NewGRPCServer("contactsd", ready.Load, 10*time.Millisecond)
	require.NoError(t, err)

	_, err = s.Start("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer stopServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, service := range []string{"", "contactsd"} {
		resp, err := CheckHealth(ctx, s.Addr(), service, nil)
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus(), "service %q", service)
	}

	ready.Store(false)
	assert.Eventually(t, func() bool {
		resp, err := CheckHealth(ctx, s.Addr(), "", nil)
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGRPCServer_UnknownService(t *testing.T) {
	s, err := NewGRPCServer("contactsd", nil, time.Hour)
	require.NoError(t, err)

	_, err = s.Start("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer stopServer(t, s)

	_, err = CheckHealth(context.Background(), s.Addr(), "nope", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONTROL_CHECK_FAILED")
}

func TestGRPCServer_HealthTLS(t *testing.T) {
	certPath, keyPath, pool := writeSelfSignedCert(t, t.TempDir())

	tlsConfig, err := LoadServerTLS(certPath, keyPath)
	require.NoError(t, err)

	s, err := NewGRPCServer("contactsd", nil, time.Hour)
	require.NoError(t, err)

	_, err = s.Start("127.0.0.1:0", tlsConfig)
	require.NoError(t, err)
	defer stopServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientTLS := &cryptotls.Config{RootCAs: pool, ServerName: "localhost", MinVersion: cryptotls.VersionTLS13}
	resp, err := CheckHealth(ctx, s.Addr(), "", clientTLS)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	t.Run("plaintext client is rejected", func(t *testing.T) {
		_, err := CheckHealth(ctx, s.Addr(), "", nil)
		require.Error(t, err)
	})
}

func TestLoadServerTLS_Missing(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadServerTLS(filepath.Join(dir, "nope.crt"), filepath.Join(dir, "nope.key"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONTROL_TLS_INVALID")
}

func TestGRPCServer_Start(t *testing.T) {
	t.Run("double start returns error", func(t *testing.T) {
		s, err := NewGRPCServer("contactsd", nil, time.Hour)
		require.NoError(t, err)

		_, err = s.Start("127.0.0.1:0", nil)
		require.NoError(t, err)
		defer stopServer(t, s)

		_, err = s.Start("127.0.0.1:0", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONTROL_ALREADY_RUNNING")
	})

	t.Run("invalid address", func(t *testing.T) {
		s, err := NewGRPCServer("contactsd", nil, time.Hour)
		require.NoError(t, err)

		_, err = s.Start("256.0.0.1:bad", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONTROL_LISTEN_FAILED")
		assert.False(t, s.running.Load())
	})

	t.Run("error channel receives nil on graceful stop", func(t *testing.T) {
		s, err := NewGRPCServer("contactsd", nil, time.Hour)
		require.NoError(t, err)

		errCh, err := s.Start("127.0.0.1:0", nil)
		require.NoError(t, err)

		stopServer(t, s)

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("expected to receive from error channel after Stop()")
		}
	})
}

func TestGRPCServer_StopWithoutStart(t *testing.T) {
	s, err := NewGRPCServer("contactsd", nil, 0)
	require.NoError(t, err)
	stopServer(t, s)
	stopServer(t, s)
}
