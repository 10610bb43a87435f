// Package tlsutil builds client TLS configurations for the broker and NATS
// connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/exchange/errors"
)

// ClientConfig describes the TLS side of an outbound connection.
// CAFiles are trusted in addition to the system pool.
type ClientConfig struct {
	Enabled            bool
	CAFiles            []string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
	MinVersion         string
}

// LoadClientTLSConfig returns nil when TLS is disabled. A client certificate
// is loaded when both CertFile and KeyFile are set.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}

	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: no PEM certificate in %s", errors.ErrInvalidConfig, caFile),
				"tlsutil",
				"LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}
	tlsConfig.RootCAs = rootCAs

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		clientCert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	case cfg.CertFile != "" || cfg.KeyFile != "":
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: client certificate needs both cert and key file", errors.ErrInvalidConfig),
			"tlsutil", "LoadClientTLSConfig", "load client certificate")
	}

	// Set only from config files, for development brokers with self-signed certs.
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// parseTLSVersion converts version string to crypto/tls constant
// Returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	case "1.2":
		return tls.VersionTLS12
	default:
		return tls.VersionTLS12
	}
}
