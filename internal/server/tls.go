package server

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
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fedshare/fedshare-go/internal/config"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
)

var (
	ErrInvalidTLSMode = errors.New("invalid TLS mode")
	ErrMissingCert    = errors.New("missing certificate or key file")
)

// TLSManager handles TLS certificate loading and generation.
type TLSManager struct {
	cfg    *config.TLSConfig
	logger *slog.Logger
}

// NewTLSManager creates a TLS manager.
func NewTLSManager(cfg *config.TLSConfig, logger *slog.Logger) *TLSManager {
	return &TLSManager{cfg: cfg, logger: logutil.OrNoop(logger)}
}

// GetTLSConfig returns a tls.Config for the configured mode. Returns nil
// for "off".
func (m *TLSManager) GetTLSConfig(hostname string) (*tls.Config, error) {
	switch m.cfg.Mode {
	case "", "off":
		return nil, nil

	case "static":
		return m.loadStaticCert()

	case "selfsigned":
		return m.getOrCreateSelfSigned(hostname)

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLSMode, m.cfg.Mode)
	}
}

func (m *TLSManager) loadStaticCert() (*tls.Config, error) {
	if m.cfg.CertFile == "" || m.cfg.KeyFile == "" {
		return nil, ErrMissingCert
	}

	cert, err := tls.LoadX509KeyPair(m.cfg.CertFile, m.cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	m.logger.Info("loaded static TLS certificate",
		"cert_file", m.cfg.CertFile,
		"key_file", m.cfg.KeyFile)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// getOrCreateSelfSigned loads an existing generated certificate or
// creates a fresh one.
func (m *TLSManager) getOrCreateSelfSigned(hostname string) (*tls.Config, error) {
	dir := m.cfg.SelfSignedDir
	if dir == "" {
		dir = ".fedshare/certs"
	}

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err == nil {
		m.logger.Info("loaded existing self-signed certificate",
			"cert_file", certFile)
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}, nil
	}

	m.logger.Info("generating self-signed certificate", "hostname", hostname)

	cert, err := m.generateSelfSigned(hostname, certFile, keyFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (m *TLSManager) generateSelfSigned(hostname, certFile, keyFile string) (tls.Certificate, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"FedShare Development"},
			CommonName:   hostname,
		},
		NotBefore:             now,
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	if ip := net.ParseIP(hostname); ip != nil {
		template.IPAddresses = append(template.IPAddresses, ip)
	} else {
		template.DNSNames = append(template.DNSNames, hostname)
	}

	// Always usable on localhost for development.
	template.DNSNames = append(template.DNSNames, "localhost")
	template.IPAddresses = append(template.IPAddresses, net.ParseIP("127.0.0.1"), net.ParseIP("::1"))

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(certFile), 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create cert directory: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to marshal key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write key: %w", err)
	}

	m.logger.Info("generated self-signed certificate",
		"cert_file", certFile,
		"key_file", keyFile,
		"expires", template.NotAfter)

	return tls.X509KeyPair(certPEM, keyPEM)
}
