package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func writeTestKeyPair(t *testing.T, certStore, name string) {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-cert"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyBytes, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	require.NoError(t, os.WriteFile(filepath.Join(certStore, name+".crt"), certPEM, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(certStore, name+".key"), keyPEM, 0o600))
}

func TestLoadServerCertificates(t *testing.T) {
	log := logrus.New()

	testCases := []struct {
		name        string
		setup       func(t *testing.T, cfg *Config)
		expectedErr error
	}{
		{
			name: "provided cert files do not exist",
			setup: func(t *testing.T, cfg *Config) {
				cfg.Service.SrvCertFile = filepath.Join(cfg.Service.CertStore, "does_not_exist.crt")
				cfg.Service.SrvKeyFile = filepath.Join(cfg.Service.CertStore, "does_not_exist.key")
			},
			expectedErr: ErrServerCertsNotFound,
		},
		{
			name: "provided cert is invalid",
			setup: func(t *testing.T, cfg *Config) {
				require.NoError(t, os.WriteFile(filepath.Join(cfg.Service.CertStore, "invalid.crt"), []byte("not a cert"), 0o600))
				writeTestKeyPair(t, cfg.Service.CertStore, "provided")
				cfg.Service.SrvCertFile = filepath.Join(cfg.Service.CertStore, "invalid.crt")
				cfg.Service.SrvKeyFile = filepath.Join(cfg.Service.CertStore, "provided.key")
			},
			expectedErr: ErrInvalidServerCerts,
		},
		{
			name: "provided certs are valid",
			setup: func(t *testing.T, cfg *Config) {
				writeTestKeyPair(t, cfg.Service.CertStore, "provided")
				cfg.Service.SrvCertFile = filepath.Join(cfg.Service.CertStore, "provided.crt")
				cfg.Service.SrvKeyFile = filepath.Join(cfg.Service.CertStore, "provided.key")
			},
		},
		{
			name: "no certs configured generates a self-signed pair",
		},
		{
			name: "existing self-signed pair is reused",
			setup: func(t *testing.T, cfg *Config) {
				writeTestKeyPair(t, cfg.Service.CertStore, cfg.Service.ServerCertName)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefault()
			cfg.Service.CertStore = t.TempDir()
			if tc.setup != nil {
				tc.setup(t, cfg)
			}

			cert, err := LoadServerCertificates(cfg, log)
			if tc.expectedErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cert)
		})
	}
}
