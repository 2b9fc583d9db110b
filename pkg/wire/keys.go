package wire

import (
	"encoding/hex"
	"fmt"
)

// PublicKey is an opaque 32-byte Curve25519 public value.
type PublicKey [PublicKeySize]byte

// SecretKey is an opaque 32-byte Curve25519 secret value.
type SecretKey [SecretKeySize]byte

// KeyPair groups a node's public and secret key.
type KeyPair struct {
	Public PublicKey
	Secret SecretKey
}

func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns the raw 32-byte encoding of the key, matching
// crypto::PublicKey's `bytes`/`from_bytes` round trip in the original.
func (k PublicKey) Bytes() [PublicKeySize]byte { return k }

// PublicKeyFromBytes is the inverse of Bytes.
func PublicKeyFromBytes(b [PublicKeySize]byte) PublicKey { return PublicKey(b) }

// EncodeKeyPairFile serializes a KeyPair into the 64-byte on-disk blob:
// public key (32) then secret key (32).
func EncodeKeyPairFile(kp KeyPair) [KeyPairFileSize]byte {
	var out [KeyPairFileSize]byte
	copy(out[0:PublicKeySize], kp.Public[:])
	copy(out[PublicKeySize:], kp.Secret[:])
	return out
}

// DecodeKeyPairFile parses the 64-byte on-disk blob back into a KeyPair.
func DecodeKeyPairFile(data []byte) (KeyPair, error) {
	if len(data) != KeyPairFileSize {
		return KeyPair{}, fmt.Errorf("wire: key file must be %d bytes, got %d", KeyPairFileSize, len(data))
	}
	var kp KeyPair
	copy(kp.Public[:], data[0:PublicKeySize])
	copy(kp.Secret[:], data[PublicKeySize:])
	return kp, nil
}
