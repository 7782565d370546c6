package trust

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testCertificate creates a self-signed CA certificate and returns its DER bytes.
func testCertificate(t *testing.T, commonName string) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	return der
}

func toPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// memorySource is an in-memory Source with a switchable read grant.
type memorySource struct {
	data     map[string][]byte
	denied   map[string]bool
	openErr  error
	opened   int
	returned []*trackingReader
}

type trackingReader struct {
	*bytes.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

func (s *memorySource) CanRead(handle string) bool {
	_, ok := s.data[handle]
	return ok && !s.denied[handle]
}

func (s *memorySource) Open(handle string) (io.ReadCloser, error) {
	s.opened++
	if s.openErr != nil {
		return nil, s.openErr
	}
	r := &trackingReader{Reader: bytes.NewReader(s.data[handle])}
	s.returned = append(s.returned, r)
	return r, nil
}

func TestBuild_SystemDefault(t *testing.T) {
	cfg, err := NewBuilder(nil).Build(SystemDefault())
	if err != nil {
		t.Fatalf("Build(SystemDefault) error = %v", err)
	}
	if cfg.RootCAs != nil {
		t.Error("SystemDefault RootCAs should be nil (system pool)")
	}
	if cfg.MinVersion != tlsMinVersion {
		t.Errorf("MinVersion = %x, want %x", cfg.MinVersion, tlsMinVersion)
	}
}

func TestBuild_CustomCertificatePinsSingleAnchor(t *testing.T) {
	pinned := testCertificate(t, "broker-ca")
	other := testCertificate(t, "other-ca")

	src := &memorySource{data: map[string][]byte{"ca.pem": toPEM(pinned)}}
	cfg, err := NewBuilder(src).Build(CustomCertificate("ca.pem"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cfg.RootCAs == nil {
		t.Fatal("RootCAs is nil, want pinned pool")
	}

	pinnedCert, _ := x509.ParseCertificate(pinned)
	if _, err := pinnedCert.Verify(x509.VerifyOptions{Roots: cfg.RootCAs}); err != nil {
		t.Errorf("pinned certificate does not verify against RootCAs: %v", err)
	}

	otherCert, _ := x509.ParseCertificate(other)
	if _, err := otherCert.Verify(x509.VerifyOptions{Roots: cfg.RootCAs}); err == nil {
		t.Error("unrelated certificate verified against pinned RootCAs")
	}

	if len(src.returned) != 1 || !src.returned[0].closed {
		t.Error("certificate stream was not closed")
	}
}

func TestBuild_CustomCertificateDER(t *testing.T) {
	src := &memorySource{data: map[string][]byte{"ca.der": testCertificate(t, "der-ca")}}

	if _, err := NewBuilder(src).Build(CustomCertificate("ca.der")); err != nil {
		t.Fatalf("Build() error = %v for DER input", err)
	}
}

func TestBuild_PermissionDenied(t *testing.T) {
	src := &memorySource{
		data:   map[string][]byte{"ca.pem": toPEM(testCertificate(t, "ca"))},
		denied: map[string]bool{"ca.pem": true},
	}

	_, err := NewBuilder(src).Build(CustomCertificate("ca.pem"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Build() error = %v, want ErrPermissionDenied", err)
	}
	if src.opened != 0 {
		t.Errorf("Open called %d times after a denied permission check, want 0", src.opened)
	}
}

func TestBuild_NilSourceIsPermissionDenied(t *testing.T) {
	_, err := NewBuilder(nil).Build(CustomCertificate("ca.pem"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Build() error = %v, want ErrPermissionDenied", err)
	}
}

func TestBuild_MalformedCertificate(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("not a certificate")},
		{"empty", []byte{}},
		{"wrong pem type", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}})},
		{"corrupt pem body", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &memorySource{data: map[string][]byte{"ca": tt.data}}
			_, err := NewBuilder(src).Build(CustomCertificate("ca"))
			if !errors.Is(err, ErrMalformedCertificate) {
				t.Errorf("Build() error = %v, want ErrMalformedCertificate", err)
			}
		})
	}
}

func TestBuild_OpenFailure(t *testing.T) {
	src := &memorySource{
		data:    map[string][]byte{"ca": nil},
		openErr: errors.New("device busy"),
	}

	_, err := NewBuilder(src).Build(CustomCertificate("ca"))
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Build() error = %v, want ErrSourceUnavailable", err)
	}
}

func TestParseCertificate_FirstOfBundle(t *testing.T) {
	first := testCertificate(t, "first")
	second := testCertificate(t, "second")
	bundle := append(toPEM(first), toPEM(second)...)

	cert, err := ParseCertificate(bundle)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	if cert.Subject.CommonName != "first" {
		t.Errorf("CommonName = %q, want %q", cert.Subject.CommonName, "first")
	}
}

// recordWipes replaces wipe for the test and returns the wiped slices.
func recordWipes(t *testing.T) *[][]byte {
	t.Helper()
	var wiped [][]byte
	orig := wipe
	wipe = func(b []byte) {
		orig(b)
		wiped = append(wiped, b)
	}
	t.Cleanup(func() { wipe = orig })
	return &wiped
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func TestBuild_WipesReadAndDecodedBytes(t *testing.T) {
	wiped := recordWipes(t)

	der := testCertificate(t, "broker-ca")
	src := &memorySource{data: map[string][]byte{"ca.pem": toPEM(der)}}
	if _, err := NewBuilder(src).Build(CustomCertificate("ca.pem")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(*wiped) != 2 {
		t.Fatalf("wiped %d buffers, want 2 (read buffer and decoded PEM block)", len(*wiped))
	}
	for i, b := range *wiped {
		if len(b) == 0 || !allZero(b) {
			t.Errorf("buffer %d not zeroed (len %d)", i, len(b))
		}
	}
	if len((*wiped)[0]) != len(der) {
		t.Errorf("decoded block length = %d, want DER length %d", len((*wiped)[0]), len(der))
	}
}

func TestParseCertificate_OwnsItsBytes(t *testing.T) {
	recordWipes(t)

	for _, tt := range []struct {
		name  string
		input func(der []byte) []byte
	}{
		{"pem", toPEM},
		{"der", func(der []byte) []byte { return bytes.Clone(der) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			der := testCertificate(t, "owned")
			data := tt.input(der)

			cert, err := ParseCertificate(data)
			if err != nil {
				t.Fatalf("ParseCertificate() error = %v", err)
			}
			clear(data)

			if !bytes.Equal(cert.Raw, der) {
				t.Error("certificate Raw changed after the input was cleared")
			}
		})
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, toPEM(testCertificate(t, "file-ca")), 0600); err != nil {
		t.Fatalf("writing certificate: %v", err)
	}

	src := FileSource{}
	if !src.CanRead(path) {
		t.Fatalf("CanRead(%q) = false, want true", path)
	}
	if src.CanRead(filepath.Join(t.TempDir(), "missing.pem")) {
		t.Error("CanRead(missing) = true, want false")
	}
	if src.CanRead("") {
		t.Error("CanRead(\"\") = true, want false")
	}

	if _, err := NewBuilder(src).Build(CustomCertificate(path)); err != nil {
		t.Errorf("Build() from file error = %v", err)
	}
}

func TestKind_String(t *testing.T) {
	if KindSystemDefault.String() != "system certificates" {
		t.Errorf("KindSystemDefault.String() = %q", KindSystemDefault.String())
	}
	if KindCustomCertificate.String() != "custom certificate" {
		t.Errorf("KindCustomCertificate.String() = %q", KindCustomCertificate.String())
	}
}
