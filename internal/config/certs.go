package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrServerCertsNotFound and ErrInvalidServerCerts are returned by
// LoadServerCertificates for a user-provided certificate/key pair that is
// missing or unusable. A missing self-signed pair is generated instead of
// failing; a cached self-signed pair that exists but cannot be loaded is
// reported as ErrInvalidServerCerts and is not regenerated.
var (
	ErrServerCertsNotFound = errors.New("server certificate or key file not found")
	ErrInvalidServerCerts  = errors.New("server certificate or key is invalid")
)

const selfSignedValidity = 365 * 24 * time.Hour

// LoadServerCertificates resolves the TLS certificate the control-protocol
// WebSocket listener presents: an explicitly configured cert/key pair if
// set, otherwise a cached or freshly generated self-signed pair under
// cfg.Service.CertStore. There is no CA-issuance chain here (no
// certificate authority package in this tree); grounded on the teacher's
// setupServerCertificates, trimmed to the self-signed-only path.
func LoadServerCertificates(cfg *Config, log *logrus.Logger) (*tls.Certificate, error) {
	if cfg.Service.SrvCertFile != "" || cfg.Service.SrvKeyFile != "" {
		if !canReadCertAndKey(cfg.Service.SrvCertFile, cfg.Service.SrvKeyFile) {
			return nil, fmt.Errorf("%w: %s / %s", ErrServerCertsNotFound, cfg.Service.SrvCertFile, cfg.Service.SrvKeyFile)
		}
		cert, err := loadKeyPair(cfg.Service.SrvCertFile, cfg.Service.SrvKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidServerCerts, err)
		}
		return cert, nil
	}

	name := cfg.Service.ServerCertName
	if name == "" {
		name = defaultServerCertName
	}
	certFile := filepath.Join(cfg.Service.CertStore, name+".crt")
	keyFile := filepath.Join(cfg.Service.CertStore, name+".key")

	if canReadCertAndKey(certFile, keyFile) {
		cert, err := loadKeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidServerCerts, err)
		}
		return cert, nil
	}

	altNames := cfg.Service.AltNames
	if len(altNames) == 0 {
		altNames = []string{"localhost"}
	}
	cert, err := generateSelfSigned(certFile, keyFile, altNames)
	if err != nil {
		return nil, fmt.Errorf("generating self-signed server certificate: %w", err)
	}

	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err == nil && log != nil {
		if time.Now().After(x509Cert.NotAfter) {
			log.Warnf("server certificate for %q has expired on %v", x509Cert.Subject.CommonName, x509Cert.NotAfter)
		}
	}

	return cert, nil
}

func canReadCertAndKey(certFile, keyFile string) bool {
	if certFile == "" || keyFile == "" {
		return false
	}
	if _, err := os.Stat(certFile); err != nil {
		return false
	}
	if _, err := os.Stat(keyFile); err != nil {
		return false
	}
	return true
}

func loadKeyPair(certFile, keyFile string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func generateSelfSigned(certFile, keyFile string, altNames []string) (*tls.Certificate, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: altNames[0]},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:              altNames,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	if err := os.MkdirAll(filepath.Dir(certFile), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}
