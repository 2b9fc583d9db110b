package mtls

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/pmailnet/relaynode/pkg/dht"
	"github.com/pmailnet/relaynode/pkg/wire"
)

// GenerateSelfSignedIdentity builds a self-signed, non-CA-delegated
// certificate for one node's admin API: nodeKey's public key is
// embedded via nodeIdentityOID, and the subject's common name is the
// node's codename, so "openssl x509 -text" on the file reads the same
// identity an operator sees in the node's own logs. A single relay has
// no separate CA to sign through, so this certificate is its own trust
// root: the file saved by EnsureNodeIdentity is both the CA a caller
// trusts and the leaf the server presents.
func GenerateSelfSignedIdentity(nodeKey wire.KeyPair, listenAddr netip.AddrPort) (*x509.Certificate, *rsa.PrivateKey, error) {
	ips := []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	if addr := listenAddr.Addr(); addr.IsValid() && !addr.IsUnspecified() {
		ips = append(ips, net.IP(addr.AsSlice()))
	}
	config := &CertConfig{
		Organization:  "pmailnet",
		CommonName:    dht.Codename(nodeKey.Public),
		DNSNames:      []string{"localhost"},
		IPAddresses:   ips,
		ValidFor:      365 * 24 * time.Hour,
		NodePublicKey: &nodeKey.Public,
	}
	return GenerateCA(config)
}

// EnsureNodeIdentity loads the admin API certificate/key pair at
// certFile/keyFile, generating and saving a fresh self-signed identity
// for nodeKey if either file is missing. It never overwrites an
// existing pair, so an operator who replaces the files with ones
// signed by a real CA keeps that choice across restarts.
func EnsureNodeIdentity(certFile, keyFile string, nodeKey wire.KeyPair, listenAddr netip.AddrPort) error {
	_, certErr := os.Stat(certFile)
	_, keyErr := os.Stat(keyFile)
	if certErr == nil && keyErr == nil {
		return nil
	}
	if certErr != nil && !os.IsNotExist(certErr) {
		return fmt.Errorf("mtls: stat %s: %w", certFile, certErr)
	}
	if keyErr != nil && !os.IsNotExist(keyErr) {
		return fmt.Errorf("mtls: stat %s: %w", keyFile, keyErr)
	}

	cert, key, err := GenerateSelfSignedIdentity(nodeKey, listenAddr)
	if err != nil {
		return fmt.Errorf("mtls: generating node identity: %w", err)
	}
	if err := SaveCertificate(cert, certFile); err != nil {
		return fmt.Errorf("mtls: saving node identity cert: %w", err)
	}
	if err := SavePrivateKey(key, keyFile); err != nil {
		return fmt.Errorf("mtls: saving node identity key: %w", err)
	}
	return nil
}
