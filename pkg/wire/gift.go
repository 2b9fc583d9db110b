package wire

import "net/netip"

// RoutingGift is a (socket address, public key) pair exchanged between
// peers to populate routing tables.
type RoutingGift struct {
	Addr netip.AddrPort
	Key  PublicKey
}

// Encode writes a single gift into its 50-byte wire form.
func (g RoutingGift) Encode() [RoutingGiftSize]byte {
	var out [RoutingGiftSize]byte
	addrBytes := EncodeSocketAddr(g.Addr)
	copy(out[0:SocketAddrSize], addrBytes[:])
	copy(out[SocketAddrSize:], g.Key[:])
	return out
}

// DecodeRoutingGift is the exact inverse of Encode.
func DecodeRoutingGift(in [RoutingGiftSize]byte) RoutingGift {
	var addrBytes [SocketAddrSize]byte
	copy(addrBytes[:], in[0:SocketAddrSize])
	var key PublicKey
	copy(key[:], in[SocketAddrSize:])
	return RoutingGift{Addr: DecodeSocketAddr(addrBytes), Key: key}
}

// EncodeGifts packs exactly NumInResponse gifts back to back.
func EncodeGifts(gifts [NumInResponse]RoutingGift) [GiftBlockSize]byte {
	var out [GiftBlockSize]byte
	for i, g := range gifts {
		b := g.Encode()
		copy(out[i*RoutingGiftSize:(i+1)*RoutingGiftSize], b[:])
	}
	return out
}

// DecodeGifts is the exact inverse of EncodeGifts.
func DecodeGifts(in [GiftBlockSize]byte) [NumInResponse]RoutingGift {
	var out [NumInResponse]RoutingGift
	for i := range out {
		var b [RoutingGiftSize]byte
		copy(b[:], in[i*RoutingGiftSize:(i+1)*RoutingGiftSize])
		out[i] = DecodeRoutingGift(b)
	}
	return out
}
