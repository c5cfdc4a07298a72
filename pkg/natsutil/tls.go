package natsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/carverauto/ssdpradar/pkg/models"
)

var (
	// ErrTLSNotConfigured is returned when TLSConfig gets no settings.
	ErrTLSNotConfigured = errors.New("nats tls is not configured")
	// ErrCAParsingFailed is returned when CA certificate cannot be parsed
	ErrCAParsingFailed = errors.New("failed to parse CA certificate")
	// ErrIncompleteKeyPair is returned when only one of cert_file and key_file is set.
	ErrIncompleteKeyPair = errors.New("cert_file and key_file must be set together")

	errNATSConfigRequired = errors.New("nats config is required")
)

// TLSConfig builds a tls.Config for connecting to NATS. A client
// certificate is loaded when both cert and key are set, enabling mTLS.
func TLSConfig(sec *models.NATSTLSConfig) (*tls.Config, error) {
	if sec == nil {
		return nil, ErrTLSNotConfigured
	}

	conf := &tls.Config{
		ServerName: sec.ServerName,
		MinVersion: tls.VersionTLS12,
	}

	switch {
	case sec.CertFile != "" && sec.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(sec.CertFile, sec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		conf.Certificates = []tls.Certificate{cert}
	case sec.CertFile != "" || sec.KeyFile != "":
		return nil, ErrIncompleteKeyPair
	}

	if sec.CAFile != "" {
		caCert, err := os.ReadFile(sec.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, ErrCAParsingFailed
		}

		conf.RootCAs = caPool
	}

	return conf, nil
}
