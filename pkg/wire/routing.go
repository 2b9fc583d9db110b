package wire

import (
	"encoding/binary"
	"net/netip"
)

// RoutingInfo is one hop's routing directive: where to send next, when
// it should arrive, and whether this hop is the payload's destination
// and/or a who-am-i probe.
type RoutingInfo struct {
	Addr     netip.AddrPort
	ETA      uint32 // seconds since Epoch
	IsForMe  bool
	WhoAmI   bool
}

// NewRoutingInfo builds a forwarding-only RoutingInfo with ETA set to
// now plus delay seconds, matching the original's RoutingInfo::new.
func NewRoutingInfo(addr netip.AddrPort, delaySeconds uint32) RoutingInfo {
	return RoutingInfo{Addr: addr, ETA: Now() + delaySeconds}
}

// Encode writes r into its fixed RoutingLength-byte wire form: 1 flag
// byte, 18-byte address, 4-byte little-endian ETA, 1 padding byte.
func (r RoutingInfo) Encode() [RoutingLength]byte {
	var out [RoutingLength]byte
	var flags byte
	if r.IsForMe {
		flags |= 1
	}
	if r.WhoAmI {
		flags |= 2
	}
	out[0] = flags
	addrBytes := EncodeSocketAddr(r.Addr)
	copy(out[1:1+SocketAddrSize], addrBytes[:])
	binary.LittleEndian.PutUint32(out[1+SocketAddrSize:1+SocketAddrSize+4], r.ETA)
	// out[23] is trailing padding, left zero.
	return out
}

// DecodeRoutingInfo is the exact inverse of Encode.
func DecodeRoutingInfo(in [RoutingLength]byte) RoutingInfo {
	var addrBytes [SocketAddrSize]byte
	copy(addrBytes[:], in[1:1+SocketAddrSize])
	eta := binary.LittleEndian.Uint32(in[1+SocketAddrSize : 1+SocketAddrSize+4])
	return RoutingInfo{
		Addr:    DecodeSocketAddr(addrBytes),
		ETA:     eta,
		IsForMe: in[0]&1 == 1,
		WhoAmI:  in[0]&2 == 2,
	}
}
