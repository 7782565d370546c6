package trust

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
)

const (
	// tlsMinVersion is the minimum TLS version for broker connections.
	tlsMinVersion = tls.VersionTLS12

	// maxCertificateSize caps how much of a certificate source is read.
	maxCertificateSize = 1 << 20
)

// wipe zeroes certificate bytes once parsed. Replaceable in tests.
var wipe = func(b []byte) { clear(b) }

// Kind selects the trust mode.
type Kind int

const (
	// KindSystemDefault trusts the host certificate store.
	KindSystemDefault Kind = iota
	// KindCustomCertificate trusts exactly one certificate from a Source.
	KindCustomCertificate
)

// String returns the trust mode name used in logs.
func (k Kind) String() string {
	switch k {
	case KindCustomCertificate:
		return "custom certificate"
	default:
		return "system certificates"
	}
}

// Spec describes which trust anchors to use.
type Spec struct {
	Kind Kind
	// Handle identifies the certificate within the Source. Only meaningful
	// for KindCustomCertificate.
	Handle string
}

// SystemDefault returns a Spec for the host certificate store.
func SystemDefault() Spec {
	return Spec{Kind: KindSystemDefault}
}

// CustomCertificate returns a Spec pinning the certificate at handle.
func CustomCertificate(handle string) Spec {
	return Spec{Kind: KindCustomCertificate, Handle: handle}
}

// Source gives access to certificate bytes.
//
// CanRead must be checked before Open; a false result means the read grant
// has been revoked and is reported as ErrPermissionDenied.
type Source interface {
	CanRead(handle string) bool
	Open(handle string) (io.ReadCloser, error)
}

// Builder turns a Spec into a *tls.Config.
type Builder struct {
	source Source
}

// NewBuilder creates a Builder reading custom certificates from source.
func NewBuilder(source Source) *Builder {
	return &Builder{source: source}
}

// Build returns the TLS configuration for spec.
//
// SystemDefault never fails. CustomCertificate fails with ErrPermissionDenied,
// ErrSourceUnavailable or ErrMalformedCertificate.
func (b *Builder) Build(spec Spec) (*tls.Config, error) {
	if spec.Kind != KindCustomCertificate {
		return systemConfig(), nil
	}

	if b.source == nil || !b.source.CanRead(spec.Handle) {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, spec.Handle)
	}

	cert, err := b.readCertificate(spec.Handle)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)

	return &tls.Config{
		MinVersion: tlsMinVersion,
		RootCAs:    pool,
	}, nil
}

// readCertificate loads and parses the certificate behind handle.
func (b *Builder) readCertificate(handle string) (*x509.Certificate, error) {
	rc, err := b.source.Open(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer rc.Close() //nolint:errcheck // read-only stream

	data, err := io.ReadAll(io.LimitReader(rc, maxCertificateSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer wipe(data)

	return ParseCertificate(data)
}

// ParseCertificate parses the first X.509 certificate in data. PEM input is
// accepted; anything without a PEM CERTIFICATE block is treated as DER.
//
// The returned certificate owns its bytes; a decoded PEM block is wiped
// before returning, and data is left to the caller.
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	der := data
	if block := firstCertificateBlock(data); block != nil {
		der = block.Bytes
		defer wipe(der)
	}

	// x509 keeps slices of its input in the certificate's Raw fields.
	cert, err := x509.ParseCertificate(bytes.Clone(der))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCertificate, err)
	}
	return cert, nil
}

// firstCertificateBlock returns the first PEM CERTIFICATE block, or nil.
func firstCertificateBlock(data []byte) *pem.Block {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil
		}
		if block.Type == "CERTIFICATE" {
			return block
		}
	}
}

// systemConfig returns a TLS configuration backed by the host trust store.
// A nil RootCAs makes crypto/tls use the system pool.
func systemConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tlsMinVersion,
	}
}
