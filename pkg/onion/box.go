package onion

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/pmailnet/relaynode/pkg/wire"
)

// MaxHops bounds how many routing layers a single Box may carry. The
// route planner draws 3-6 hops; this is the ceiling the wire format
// and buffer sizing plan around.
const MaxHops = 6

const (
	ringOverhead    = ephemeralKeySize + nonceSize + aeadOverhead // 60
	routingLayerLen = wire.RoutingLength + ringOverhead           // one hop's ring, excluding whatever it nests
	payloadBlobSize = ephemeralKeySize + nonceSize + wire.PayloadLength + aeadOverhead

	// MaxRoutingLayerSize is routingLayerLen accumulated MaxHops deep.
	MaxRoutingLayerSize = routingLayerLen * MaxHops
	// MaxPacketSize bounds any serialized Box, magic token included.
	MaxPacketSize = wire.PublicKeySize + MaxRoutingLayerSize + payloadBlobSize

	minRoutingLayerLen = routingLayerLen // below this, Open must treat the layer as absent
)

// Hop is one position in a planned route: the peer whose secret key
// can open this layer, and the routing directive sealed inside it.
type Hop struct {
	PublicKey wire.PublicKey
	Routing   wire.RoutingInfo
}

// Box is a constructed onion packet together with the bookkeeping the
// original sender needs to later read a response off the wire. The
// DHT stores constructed Boxes keyed by ReturnMagic() while a route is
// outstanding.
type Box struct {
	magic       [32]byte
	routingLayer []byte // nested rings, outermost first hop on the outside; empty once fully peeled
	payloadBlob []byte  // fixed-size, opaque to every hop but the terminal

	senderSecret   wire.SecretKey // needed to recompute the payload ECDH on ReadReturn
	terminalPublic wire.PublicKey
}

// Construct builds a Box that will travel hops[0] -> hops[1] -> ... in
// order, sealing payload for only hops[terminalIndex] to read. Every
// hop's own RoutingInfo determines where it forwards the packet next;
// a route that should loop back to its originator encodes that in the
// last hop's RoutingInfo.Addr, not in this function.
func Construct(hops []Hop, terminalIndex int, sender wire.KeyPair, payload [wire.PayloadLength]byte) (*Box, error) {
	if len(hops) == 0 || len(hops) > MaxHops {
		return nil, fmt.Errorf("onion: route must have 1-%d hops, got %d", MaxHops, len(hops))
	}
	if terminalIndex < 0 || terminalIndex >= len(hops) {
		return nil, fmt.Errorf("onion: terminal index %d out of range for %d hops", terminalIndex, len(hops))
	}

	var inner []byte
	for i := len(hops) - 1; i >= 0; i-- {
		ephPub, ephSecret, err := generateEphemeral()
		if err != nil {
			return nil, err
		}
		shared, err := sharedSecret(ephSecret, hops[i].PublicKey)
		if err != nil {
			return nil, err
		}
		key, err := deriveKey(shared, routingKDFInfo)
		if err != nil {
			return nil, err
		}
		nonce, err := randomNonce()
		if err != nil {
			return nil, err
		}
		routingBytes := hops[i].Routing.Encode()
		plaintext := append(append([]byte{}, routingBytes[:]...), inner...)
		ciphertext, err := seal(key, nonce, plaintext)
		if err != nil {
			return nil, err
		}
		ring := make([]byte, 0, ephemeralKeySize+nonceSize+len(ciphertext))
		ring = append(ring, ephPub[:]...)
		ring = append(ring, nonce...)
		ring = append(ring, ciphertext...)
		inner = ring
	}

	var magic [32]byte
	if _, err := io.ReadFull(rand.Reader, magic[:]); err != nil {
		return nil, fmt.Errorf("onion: generate return magic: %w", err)
	}

	b := &Box{
		magic:          magic,
		routingLayer:   inner,
		senderSecret:   sender.Secret,
		terminalPublic: hops[terminalIndex].PublicKey,
	}
	if err := b.sealPayload(sender, hops[terminalIndex].PublicKey, payload); err != nil {
		return nil, err
	}
	return b, nil
}

// sealPayload seals payload for the terminal hop's real identity key,
// carrying the sender's own public key alongside it in the clear so
// the terminal (and, on the way back, the sender itself) can redo the
// matching ECDH without any extra data on the wire.
func (b *Box) sealPayload(sender wire.KeyPair, terminal wire.PublicKey, payload [wire.PayloadLength]byte) error {
	shared, err := sharedSecret(sender.Secret, terminal)
	if err != nil {
		return err
	}
	key, err := deriveKey(shared, payloadKDFInfo)
	if err != nil {
		return err
	}
	nonce, err := randomNonce()
	if err != nil {
		return err
	}
	ciphertext, err := seal(key, nonce, payload[:])
	if err != nil {
		return err
	}
	blob := make([]byte, 0, payloadBlobSize)
	blob = append(blob, sender.Public[:]...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	b.payloadBlob = blob
	return nil
}

// ReturnMagic is the 32-byte correlation token prefixing every
// serialized form of this Box, from the first hop all the way back to
// the originator once the route loops home.
func (b *Box) ReturnMagic() [32]byte { return b.magic }

// Packet serializes the Box as it should be put on the wire right now.
func (b *Box) Packet() []byte {
	out := make([]byte, 0, 32+len(b.routingLayer)+len(b.payloadBlob))
	out = append(out, b.magic[:]...)
	out = append(out, b.routingLayer...)
	out = append(out, b.payloadBlob...)
	return out
}

// OpenedOnion is the result of peeling one routing layer off a
// packet: the directive for this hop, plus enough state to either
// forward the remainder, read the payload, or reseal a response.
type OpenedOnion struct {
	Routing wire.RoutingInfo

	magic        [32]byte
	routingLayer []byte // remainder after this layer; empty if this was the last hop
	payloadBlob  []byte

	senderPublic wire.PublicKey // populated once Payload() succeeds
	havePayload  bool
}

// Open attempts to peel the outermost routing layer of packet using
// secret. It fails whenever packet's leading bytes don't form a valid
// layer openable with secret: wrong key, corrupted bytes, or a packet
// whose routing layer has already been fully peeled by earlier hops
// (the empty-layer case a route's final loop-back leg produces).
func Open(secret wire.SecretKey, packet []byte) (*OpenedOnion, error) {
	if len(packet) < 32+payloadBlobSize {
		return nil, fmt.Errorf("onion: packet too short to contain a payload envelope")
	}
	magicBytes := packet[:32]
	rest := packet[32:]

	layerLen := len(rest) - payloadBlobSize
	if layerLen < minRoutingLayerLen {
		return nil, fmt.Errorf("onion: no routing layer left to open")
	}

	layer := rest[:layerLen]
	payloadBlob := rest[layerLen:]

	var ephPub wire.PublicKey
	copy(ephPub[:], layer[0:ephemeralKeySize])
	nonce := layer[ephemeralKeySize : ephemeralKeySize+nonceSize]
	ciphertext := layer[ephemeralKeySize+nonceSize:]

	shared, err := sharedSecret(secret, ephPub)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(shared, routingKDFInfo)
	if err != nil {
		return nil, err
	}
	plaintext, err := open(key, nonce, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("onion: routing layer did not open: %w", err)
	}
	if len(plaintext) < wire.RoutingLength {
		return nil, fmt.Errorf("onion: opened routing layer too short")
	}

	var routingBytes [wire.RoutingLength]byte
	copy(routingBytes[:], plaintext[:wire.RoutingLength])
	routing := wire.DecodeRoutingInfo(routingBytes)

	var magic [32]byte
	copy(magic[:], magicBytes)

	return &OpenedOnion{
		Routing:      routing,
		magic:        magic,
		routingLayer: plaintext[wire.RoutingLength:],
		payloadBlob:  append([]byte{}, payloadBlob...),
	}, nil
}

// Payload attempts to decrypt the payload envelope with myKeyPair.
// Callers should only call this when Routing.IsForMe is set; any other
// hop's key pair will fail AEAD authentication here.
func (o *OpenedOnion) Payload(myKeyPair wire.KeyPair) ([wire.PayloadLength]byte, error) {
	var out [wire.PayloadLength]byte
	var senderPub wire.PublicKey
	copy(senderPub[:], o.payloadBlob[0:ephemeralKeySize])
	nonce := o.payloadBlob[ephemeralKeySize : ephemeralKeySize+nonceSize]
	ciphertext := o.payloadBlob[ephemeralKeySize+nonceSize:]

	shared, err := sharedSecret(myKeyPair.Secret, senderPub)
	if err != nil {
		return out, err
	}
	key, err := deriveKey(shared, payloadKDFInfo)
	if err != nil {
		return out, err
	}
	plaintext, err := open(key, nonce, ciphertext)
	if err != nil {
		return out, fmt.Errorf("onion: payload did not open: %w", err)
	}
	copy(out[:], plaintext)
	o.senderPublic = senderPub
	o.havePayload = true
	return out, nil
}

// Key returns the real identity public key the payload was sealed
// for/by, available once Payload has succeeded. It is the "who proved
// possession of this key on this hop" identity used by who-am-i
// handling.
func (o *OpenedOnion) Key() (wire.PublicKey, bool) {
	return o.senderPublic, o.havePayload
}

// Respond reseals newPayload into this Box's payload envelope using
// the same ECDH pairing the original payload was opened with, so the
// result is readable by ReadReturn back at the original sender. It may
// only be called after a successful Payload().
func (o *OpenedOnion) Respond(myKeyPair wire.KeyPair, newPayload [wire.PayloadLength]byte) error {
	if !o.havePayload {
		return fmt.Errorf("onion: cannot respond before payload has been opened")
	}
	shared, err := sharedSecret(myKeyPair.Secret, o.senderPublic)
	if err != nil {
		return err
	}
	key, err := deriveKey(shared, payloadKDFInfo)
	if err != nil {
		return err
	}
	nonce, err := randomNonce()
	if err != nil {
		return err
	}
	ciphertext, err := seal(key, nonce, newPayload[:])
	if err != nil {
		return err
	}
	blob := make([]byte, 0, payloadBlobSize)
	blob = append(blob, o.senderPublic[:]...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	o.payloadBlob = blob
	return nil
}

// Packet serializes the post-peel state for forwarding to
// Routing.Addr: the same return magic, whatever routing layer remains
// (empty once the last hop has peeled), and the current payload
// envelope.
func (o *OpenedOnion) Packet() []byte {
	out := make([]byte, 0, 32+len(o.routingLayer)+len(o.payloadBlob))
	out = append(out, o.magic[:]...)
	out = append(out, o.routingLayer...)
	out = append(out, o.payloadBlob...)
	return out
}

// PacketReturnMagic reads the correlation token off the front of a raw
// packet, for callers that need to match it against an outstanding Box
// before Open was even attempted (Case B in the packet handler).
func PacketReturnMagic(packet []byte) ([32]byte, error) {
	var magic [32]byte
	if len(packet) < 32 {
		return magic, fmt.Errorf("onion: packet shorter than a return-magic token")
	}
	copy(magic[:], packet[:32])
	return magic, nil
}

// ReadReturn decrypts a packet whose leading 32 bytes matched this
// Box's ReturnMagic and whose routing layer has already been fully
// peeled away by every hop on the route (layerLen == 0). myKeyPair
// must be the same key pair this Box was Construct-ed with.
func (b *Box) ReadReturn(myKeyPair wire.KeyPair, packet []byte) ([wire.PayloadLength]byte, error) {
	var out [wire.PayloadLength]byte
	if len(packet) != 32+payloadBlobSize {
		return out, fmt.Errorf("onion: return packet has unexpected length %d", len(packet))
	}
	payloadBlob := packet[32:]

	shared, err := sharedSecret(myKeyPair.Secret, b.terminalPublic)
	if err != nil {
		return out, err
	}
	key, err := deriveKey(shared, payloadKDFInfo)
	if err != nil {
		return out, err
	}
	nonce := payloadBlob[ephemeralKeySize : ephemeralKeySize+nonceSize]
	ciphertext := payloadBlob[ephemeralKeySize+nonceSize:]
	plaintext, err := open(key, nonce, ciphertext)
	if err != nil {
		return out, fmt.Errorf("onion: return payload did not open: %w", err)
	}
	copy(out[:], plaintext)
	return out, nil
}
