// Package onion implements the layered onion-box primitive: per-hop
// ECDH key agreement, HKDF key derivation, and ChaCha20-Poly1305
// sealing of a nested routing blob plus a single opaque payload
// envelope carried alongside it.
package onion

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/pmailnet/relaynode/pkg/wire"
)

const (
	nonceSize  = chacha20poly1305.NonceSize
	aeadOverhead = chacha20poly1305.Overhead
	ephemeralKeySize = wire.PublicKeySize
)

// routingInfo label and payload label keep the two ECDH ladders
// (per-hop forwarding keys vs. sender-to-terminal payload keys) from
// ever deriving the same symmetric key, even if the same key pair were
// reused on both sides of an unlikely collision.
const (
	routingKDFInfo = "pmailnet-onion-routing-v1"
	payloadKDFInfo = "pmailnet-onion-payload-v1"
)

// generateEphemeral produces a fresh Curve25519 key pair for one
// onion layer. Every routing layer gets its own, so compromising one
// hop's secret never threatens another layer's confidentiality.
func generateEphemeral() (wire.PublicKey, wire.SecretKey, error) {
	var secret wire.SecretKey
	if _, err := io.ReadFull(rand.Reader, secret[:]); err != nil {
		return wire.PublicKey{}, wire.SecretKey{}, fmt.Errorf("onion: generate ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return wire.PublicKey{}, wire.SecretKey{}, fmt.Errorf("onion: derive ephemeral public key: %w", err)
	}
	var public wire.PublicKey
	copy(public[:], pub)
	return public, secret, nil
}

// sharedSecret runs X25519 between a local secret and a remote public
// key. Diffie-Hellman symmetry means either side of a key pairing
// derives the same value, which is what lets a sealed payload be
// re-derived later by whichever side didn't originally compute it.
func sharedSecret(local wire.SecretKey, remote wire.PublicKey) ([]byte, error) {
	out, err := curve25519.X25519(local[:], remote[:])
	if err != nil {
		return nil, fmt.Errorf("onion: ECDH: %w", err)
	}
	return out, nil
}

// deriveKey expands a raw ECDH shared secret into a 32-byte
// ChaCha20-Poly1305 key, domain-separated by info so the routing and
// payload ladders never collide.
func deriveKey(shared []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, shared, nil, []byte(info))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("onion: HKDF expand: %w", err)
	}
	return key, nil
}

func randomNonce() ([]byte, error) {
	n := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, n); err != nil {
		return nil, fmt.Errorf("onion: generate nonce: %w", err)
	}
	return n, nil
}

func seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("onion: new AEAD: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("onion: new AEAD: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("onion: AEAD open: %w", err)
	}
	return plaintext, nil
}
