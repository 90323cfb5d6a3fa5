// Package crypto builds the TLS configuration for the broker's
// reliable-stream listener. TLS is a collaborator concern: the wire
// protocol itself is transport-agnostic, so everything here stays at the
// listener boundary and nothing in internal/streaming or internal/protocol
// knows whether the carrier is encrypted.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// TLSConfig holds the listener's TLS options.
type TLSConfig struct {
	// Certificate paths (for loading from files)
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`

	// Direct PEM data (alternative to files)
	CertPEM []byte `json:"-"`
	KeyPEM  []byte `json:"-"`

	// TLS version constraints
	MinVersion uint16 `json:"min_version,omitempty"` // Default: TLS 1.2
	MaxVersion uint16 `json:"max_version,omitempty"` // Default: TLS 1.3

	// Auto-generate a self-signed cert for development
	AutoCert bool `json:"auto_cert,omitempty"`

	// Certificate details for auto-generation
	CommonName   string   `json:"common_name,omitempty"`
	Organization string   `json:"organization,omitempty"`
	DNSNames     []string `json:"dns_names,omitempty"`
	IPAddresses  []string `json:"ip_addresses,omitempty"`
	ValidDays    int      `json:"valid_days,omitempty"` // Default: 365
}

// DefaultTLSConfig returns secure defaults suitable for development.
func DefaultTLSConfig() *TLSConfig {
	return &TLSConfig{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CommonName:   "localhost",
		Organization: "Tidelog Development",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []string{"127.0.0.1", "::1"},
		ValidDays:    365,
	}
}

// BuildTLSConfig creates a tls.Config from TLSConfig.
func (c *TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: c.MinVersion,
		MaxVersion: c.MaxVersion,

		CipherSuites: []uint16{
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_CHACHA20_POLY1305_SHA256,

			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}

	var cert tls.Certificate
	var err error

	if c.CertPEM != nil && c.KeyPEM != nil {
		cert, err = tls.X509KeyPair(c.CertPEM, c.KeyPEM)
	} else if c.CertFile != "" && c.KeyFile != "" {
		cert, err = tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	} else if c.AutoCert {
		cert, err = c.generateSelfSignedCert()
	} else {
		return nil, fmt.Errorf("no certificate configured: set CertFile/KeyFile, CertPEM/KeyPEM, or AutoCert")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	tlsConfig.Certificates = []tls.Certificate{cert}
	return tlsConfig, nil
}

// generateSelfSignedCert creates a self-signed certificate for development.
func (c *TLSConfig) generateSelfSignedCert() (tls.Certificate, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	validDays := c.ValidDays
	if validDays <= 0 {
		validDays = 365
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   c.CommonName,
			Organization: []string{c.Organization},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(0, 0, validDays),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              c.DNSNames,
	}

	for _, ipStr := range c.IPAddresses {
		if ip := net.ParseIP(ipStr); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return tls.X509KeyPair(certPEM, keyPEM)
}

// WrapListener layers TLS over an already-bound listener. The broker's TCP
// accept loop is unchanged: it reads length-prefixed frames off whatever
// net.Conn the listener hands it.
func (c *TLSConfig) WrapListener(ln net.Listener) (net.Listener, error) {
	tlsConfig, err := c.BuildTLSConfig()
	if err != nil {
		return nil, err
	}
	return tls.NewListener(ln, tlsConfig), nil
}
