package mtls

import (
	"crypto/rand"
	"io"
	"net/netip"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/curve25519"

	"github.com/pmailnet/relaynode/pkg/wire"
)

func testKeyPair(t *testing.T) wire.KeyPair {
	t.Helper()
	var kp wire.KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.Secret[:]); err != nil {
		t.Fatalf("failed to generate secret key: %v", err)
	}
	pub, err := curve25519.X25519(kp.Secret[:], curve25519.Basepoint)
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	copy(kp.Public[:], pub)
	return kp
}

func TestGenerateSelfSignedIdentityEmbedsNodeKey(t *testing.T) {
	kp := testKeyPair(t)
	addr := netip.MustParseAddrPort("127.0.0.1:8443")

	cert, key, err := GenerateSelfSignedIdentity(kp, addr)
	if err != nil {
		t.Fatalf("GenerateSelfSignedIdentity: %v", err)
	}
	if key == nil {
		t.Fatal("private key is nil")
	}

	got, ok := ExtractNodePublicKey(cert)
	if !ok {
		t.Fatal("certificate carries no node identity extension")
	}
	if got != kp.Public {
		t.Errorf("embedded public key = %x, want %x", got, kp.Public)
	}
	if cert.Subject.CommonName == "" {
		t.Error("expected a non-empty codename common name")
	}
}

func TestExtractNodePublicKeyAbsent(t *testing.T) {
	cert, _, err := GenerateCA(nil)
	if err != nil {
		t.Fatalf("GenerateCA: %v", err)
	}
	if _, ok := ExtractNodePublicKey(cert); ok {
		t.Error("expected no node identity extension on a plain CA cert")
	}
}

func TestEnsureNodeIdentityGeneratesOnce(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "admin.crt")
	keyFile := filepath.Join(dir, "admin.key")
	kp := testKeyPair(t)
	addr := netip.MustParseAddrPort("127.0.0.1:8443")

	if err := EnsureNodeIdentity(certFile, keyFile, kp, addr); err != nil {
		t.Fatalf("EnsureNodeIdentity: %v", err)
	}
	firstCert, err := LoadCertificate(certFile)
	if err != nil {
		t.Fatalf("LoadCertificate: %v", err)
	}

	// Calling again with existing files must not regenerate them.
	if err := EnsureNodeIdentity(certFile, keyFile, kp, addr); err != nil {
		t.Fatalf("EnsureNodeIdentity (second call): %v", err)
	}
	secondCert, err := LoadCertificate(certFile)
	if err != nil {
		t.Fatalf("LoadCertificate: %v", err)
	}
	if !firstCert.Equal(secondCert) {
		t.Error("EnsureNodeIdentity regenerated an existing identity")
	}
}

func TestSelfSignedIdentityDiffersFromOtherNodeKey(t *testing.T) {
	kp := testKeyPair(t)
	other := testKeyPair(t)
	addr := netip.MustParseAddrPort("127.0.0.1:8443")

	cert, _, err := GenerateSelfSignedIdentity(kp, addr)
	if err != nil {
		t.Fatalf("GenerateSelfSignedIdentity: %v", err)
	}
	got, _ := ExtractNodePublicKey(cert)
	if got == other.Public {
		t.Fatal("test fixture collision: generated identical key pairs")
	}
}
