// Package keystore loads or generates this node's long-term Curve25519
// key pair, matching the original's read_keypair/gethostname/
// read_or_generate_keypair trio.
package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/curve25519"

	"github.com/pmailnet/relaynode/pkg/wire"
)

// DefaultFileName picks a key filename derived from the local
// hostname when available, falling back to a plain name otherwise -
// useful mainly when a shared home directory serves multiple hosts
// that should each run an independent node.
func DefaultFileName() string {
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		return ".pmail.key"
	}
	return fmt.Sprintf(".pmail-%s.key", strings.Fields(hostname)[0])
}

// Load reads a 64-byte key pair file.
func Load(path string) (wire.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return wire.KeyPair{}, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	return wire.DecodeKeyPairFile(data)
}

// Generate produces a fresh key pair and writes it to path.
func Generate(path string) (wire.KeyPair, error) {
	var secret wire.SecretKey
	if _, err := io.ReadFull(rand.Reader, secret[:]); err != nil {
		return wire.KeyPair{}, fmt.Errorf("keystore: generate secret key: %w", err)
	}
	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return wire.KeyPair{}, fmt.Errorf("keystore: derive public key: %w", err)
	}
	var kp wire.KeyPair
	copy(kp.Public[:], pub)
	kp.Secret = secret

	blob := wire.EncodeKeyPairFile(kp)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return wire.KeyPair{}, fmt.Errorf("keystore: create key directory: %w", err)
	}
	if err := os.WriteFile(path, blob[:], 0o600); err != nil {
		return wire.KeyPair{}, fmt.Errorf("keystore: write %s: %w", path, err)
	}
	log.Printf("keystore: created new key pair, public key %s", kp.Public)
	return kp, nil
}

// LoadOrGenerate loads the key pair at path, generating and
// persisting a fresh one if the file does not yet exist.
func LoadOrGenerate(path string) (wire.KeyPair, error) {
	kp, err := Load(path)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		// The file exists but is unreadable or malformed: surface the
		// original error rather than silently overwriting it with a
		// fresh key.
		return wire.KeyPair{}, err
	}
	return Generate(path)
}
