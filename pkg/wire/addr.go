package wire

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
)

// EncodeSocketAddr writes addr into its canonical 18-byte form. IPv4
// (and IPv4-mapped IPv6) addresses use [0:2]=0 as a discriminant, the
// port at [2:4], and the 4 address octets at [4:8]; IPv6 addresses use
// the port at [0:2] and eight 16-bit segments at [2:18]. The two
// address families use different port offsets, so [0:2]==0 tells them
// apart on decode for every IPv6 address with a nonzero port; an IPv6
// address with port 0 also encodes with [0:2]==0 and decodes as IPv4.
func EncodeSocketAddr(addr netip.AddrPort) [SocketAddrSize]byte {
	var out [SocketAddrSize]byte

	ip := addr.Addr()
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	if ip.Is4() {
		binary.LittleEndian.PutUint16(out[2:4], addr.Port())
		b := ip.As4()
		copy(out[4:8], b[:])
		return out
	}

	binary.LittleEndian.PutUint16(out[0:2], addr.Port())
	b := ip.As16()
	for i := 0; i < 8; i++ {
		seg := binary.BigEndian.Uint16(b[2*i : 2*i+2])
		binary.LittleEndian.PutUint16(out[2+2*i:4+2*i], seg)
	}
	return out
}

// DecodeSocketAddr inverts EncodeSocketAddr for every address except
// an IPv6 address with port 0 (see EncodeSocketAddr). Bytes
// [0:2] being zero selects the IPv4 branch (port at [2:4], octets at
// [4:8]); otherwise the port is at [0:2] and the value is interpreted
// as eight 16-bit segments starting at offset 2.
func DecodeSocketAddr(in [SocketAddrSize]byte) netip.AddrPort {
	if in[0] == 0 && in[1] == 0 {
		port := binary.LittleEndian.Uint16(in[2:4])
		ip := netip.AddrFrom4([4]byte{in[4], in[5], in[6], in[7]})
		return netip.AddrPortFrom(ip, port)
	}

	port := binary.LittleEndian.Uint16(in[0:2])
	var segs [8]uint16
	for i := 0; i < 8; i++ {
		segs[i] = binary.LittleEndian.Uint16(in[2+2*i : 4+2*i])
	}
	var b [16]byte
	for i, s := range segs {
		binary.BigEndian.PutUint16(b[2*i:2*i+2], s)
	}
	ip := netip.AddrFrom16(b)
	return netip.AddrPortFrom(ip, port)
}

// ParseSocketAddr parses a "host:port" string into a netip.AddrPort,
// accepting both IPv4 and IPv6 forms.
func ParseSocketAddr(s string) (netip.AddrPort, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("wire: invalid socket address %q: %w", s, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("wire: invalid socket address %q: %w", s, err)
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return netip.AddrPort{}, fmt.Errorf("wire: invalid port in %q: %w", s, err)
	}
	return netip.AddrPortFrom(addr, port), nil
}
