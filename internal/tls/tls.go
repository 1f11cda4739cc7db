// Package tls prepares the backend's server-side TLS settings, generating a
// self-signed certificate on first use when asked to.
package tls

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// File names used inside a certificate directory.
const (
	CACertFile = "tls_ca.crt"
	CertFile   = "tls.crt"
	KeyFile    = "tls.key"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 5 * 365 * 24 * time.Hour

// parseTLSVersion parses a version string; empty means the default.
func parseTLSVersion(ver string) (uint16, error) {
	switch ver {
	case "", "default", "1.2", "TLS1.2", "tls1.2":
		return tls.VersionTLS12, nil
	case "1.3", "TLS1.3", "tls1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q", ver)
	}
}

// ServerConfig loads the key pair and returns a server configuration with
// the given minimum version.
func ServerConfig(certPath, keyPath, minVersion string) (*tls.Config, error) {
	minVer, err := parseTLSVersion(minVersion)
	if err != nil {
		return nil, err
	}
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	// #nosec G402 minimum version is configurable down to TLS 1.2
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   minVer,
	}, nil
}

// EnsureSelfSigned returns the certificate and key paths inside dir,
// generating a localhost certificate first when either file is missing.
func EnsureSelfSigned(dir string) (certPath, keyPath string, err error) {
	certPath = filepath.Join(dir, CertFile)
	keyPath = filepath.Join(dir, KeyFile)
	if certificatesExist(certPath, keyPath) {
		return certPath, keyPath, nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", fmt.Errorf("failed to create certificate directory: %w", err)
	}
	err = GenerateSelfSignedCert(CertConfig{
		CommonName:   "localhost",
		Organization: "timewarden",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []string{"127.0.0.1", "::1"},
		NotAfter:     time.Now().Add(DefaultValidity),
		CertPath:     certPath,
		KeyPath:      keyPath,
		CACertPath:   filepath.Join(dir, CACertFile),
	})
	if err != nil {
		return "", "", fmt.Errorf("certificate generation failed: %w", err)
	}
	return certPath, keyPath, nil
}

func certificatesExist(certPath, keyPath string) bool {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}
