package dht

import (
	"net/netip"

	"github.com/pmailnet/relaynode/pkg/wire"
)

// bingley is the hard-coded bootstrap peer every fresh node starts
// with. A production deployment may add further bootstrap peers via
// config (see pkg/config); this peer is always seeded as well.
func bingley() wire.RoutingGift {
	return wire.RoutingGift{
		Addr: netip.MustParseAddrPort("128.193.96.51:54321"),
		Key: wire.PublicKey{
			212, 73, 217, 51, 40, 221, 144,
			145, 86, 176, 174, 255, 41, 29,
			172, 191, 136, 196, 210, 157, 215,
			11, 144, 238, 198, 47, 200, 43,
			227, 172, 76, 45,
		},
	}
}
