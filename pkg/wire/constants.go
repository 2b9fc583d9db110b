// Package wire implements the fixed-width, no-framing on-wire encoding
// used by every record that crosses the network or touches disk: socket
// addresses, per-hop routing directives, keys, gifts, and payload
// messages. Every encoder is total and every decoder is its exact
// inverse, except DecodeSocketAddr for an IPv6 address with port 0;
// there is no length prefix anywhere in this package.
package wire

import "time"

const (
	// SocketAddrSize is the canonical on-wire width of a SocketAddr: a
	// 2-byte port followed by 16 bytes of address (4 used for IPv4).
	SocketAddrSize = 18

	// RoutingLength is the fixed width of one hop's RoutingInfo record,
	// as dictated by the onion primitive's per-hop routing length:
	// 1 flag byte + 18-byte address + 4-byte ETA + 1 padding byte.
	RoutingLength = 24

	// PublicKeySize and SecretKeySize are both 32 opaque bytes.
	PublicKeySize = 32
	SecretKeySize = 32
	// KeyPairFileSize is the on-disk width of a key file: public then secret.
	KeyPairFileSize = PublicKeySize + SecretKeySize

	// RoutingGiftSize is a (SocketAddr, PublicKey) pair: 18 + 32 bytes.
	RoutingGiftSize = SocketAddrSize + PublicKeySize

	// NumInResponse is how many gifts fit in a Greetings/Response body.
	NumInResponse = 10

	// GiftBlockSize is NumInResponse gifts back to back.
	GiftBlockSize = RoutingGiftSize * NumInResponse

	// USERMessageLength is the end-to-end user payload size carried by
	// ForwardPlease.
	USERMessageLength = 512

	// PayloadLength is the fixed width of a Message payload: 1 tag byte
	// plus the largest variant body (ForwardPlease: 32-byte destination
	// key + 512-byte opaque message).
	PayloadLength = 1 + PublicKeySize + USERMessageLength
)

// Epoch is the fixed reference instant used only on the wire, never
// persisted to disk. ETAs are seconds since Epoch, encoded as a
// little-endian u32.
var Epoch = time.Unix(1420092000, 0)

// Now returns the current time as seconds since Epoch, the representation
// used for every ETA on the wire.
func Now() uint32 {
	return uint32(time.Since(Epoch).Seconds())
}
