package dht

import (
	"crypto/rand"
	"io"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pmailnet/relaynode/pkg/wire"
)

func randKeyPair(t *testing.T) wire.KeyPair {
	t.Helper()
	var kp wire.KeyPair
	_, err := io.ReadFull(rand.Reader, kp.Public[:])
	require.NoError(t, err)
	_, err = io.ReadFull(rand.Reader, kp.Secret[:])
	require.NoError(t, err)
	return kp
}

func addrAt(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, 1}), port)
}

func TestNewTableSeedsBingley(t *testing.T) {
	table := New(randKeyPair(t))
	require.Equal(t, 1, table.Size())
}

func TestAcceptGiftPopulatesBothMaps(t *testing.T) {
	table := New(randKeyPair(t))
	peer := randKeyPair(t)
	table.AcceptSingleGift(wire.RoutingGift{Addr: addrAt(1000), Key: peer.Public})
	require.Equal(t, 2, table.Size())

	g, err := table.RandomGift()
	require.NoError(t, err)
	require.NotEqual(t, wire.PublicKey{}, g.Key)
}

func TestPickRouteFailsWithoutSelfAddress(t *testing.T) {
	table := New(randKeyPair(t))
	for i := 0; i < 10; i++ {
		table.AcceptSingleGift(wire.RoutingGift{Addr: addrAt(uint16(2000 + i)), Key: randKeyPair(t).Public})
	}
	_, err := table.PickRoute()
	require.ErrorIs(t, err, ErrSelfAddressUnknown)
}

func TestPickRouteProducesBoundedDistinctAdjacentHops(t *testing.T) {
	myKey := randKeyPair(t)
	table := New(myKey)
	table.AcceptSingleGift(wire.RoutingGift{Addr: addrAt(9999), Key: myKey.Public})
	for i := 0; i < 50; i++ {
		table.AcceptSingleGift(wire.RoutingGift{Addr: addrAt(uint16(3000 + i)), Key: randKeyPair(t).Public})
	}

	for trial := 0; trial < 100; trial++ {
		route, err := table.PickRoute()
		require.NoError(t, err)
		require.LessOrEqual(t, len(route), 6)
		for i, g := range route {
			require.NotEqual(t, myKey.Public, g.Key, "route must never pass through self")
			if i > 0 {
				require.NotEqual(t, route[i-1].Key, g.Key, "no immediate self-loop (repeat hop)")
			}
		}
	}
}

func TestGreetRequiresKnownSelfAddress(t *testing.T) {
	myKey := randKeyPair(t)
	table := New(myKey)
	for i := 0; i < 10; i++ {
		table.AcceptSingleGift(wire.RoutingGift{Addr: addrAt(uint16(4000 + i)), Key: randKeyPair(t).Public})
	}
	_, _, err := table.Greet()
	require.Error(t, err)
}

func TestGreetBuildsALoopBackToSelf(t *testing.T) {
	myKey := randKeyPair(t)
	table := New(myKey)
	table.AcceptSingleGift(wire.RoutingGift{Addr: addrAt(9999), Key: myKey.Public})
	for i := 0; i < 20; i++ {
		table.AcceptSingleGift(wire.RoutingGift{Addr: addrAt(uint16(5000 + i)), Key: randKeyPair(t).Public})
	}

	firstHop, box, err := table.Greet()
	require.NoError(t, err)
	require.True(t, firstHop.IsValid())
	require.NotNil(t, box)
	require.Equal(t, 0, table.OutstandingCount()+0) // box not auto-stored by Greet itself

	table.StoreOutstanding(box)
	require.Equal(t, 1, table.OutstandingCount())

	got, ok := table.PeekOutstanding(box.ReturnMagic())
	require.True(t, ok)
	require.Same(t, box, got)
}

func TestWhoAmISingleHopTargetsOnlyThatPeer(t *testing.T) {
	myKey := randKeyPair(t)
	table := New(myKey)
	peer := randKeyPair(t)
	who := wire.RoutingGift{Addr: addrAt(6000), Key: peer.Public}

	addr, box, err := table.WhoAmI(who)
	require.NoError(t, err)
	require.Equal(t, who.Addr, addr)
	require.NotNil(t, box)
}

func TestSweepOutstandingEvictsOldEntries(t *testing.T) {
	myKey := randKeyPair(t)
	table := New(myKey)
	peer := randKeyPair(t)
	_, box, err := table.WhoAmI(wire.RoutingGift{Addr: addrAt(7000), Key: peer.Public})
	require.NoError(t, err)
	table.StoreOutstanding(box)
	require.Equal(t, 1, table.OutstandingCount())

	evicted := table.SweepOutstanding(time.Hour)
	require.Equal(t, 0, evicted)
	require.Equal(t, 1, table.OutstandingCount())

	evicted = table.SweepOutstanding(0)
	require.Equal(t, 1, evicted)
	require.Equal(t, 0, table.OutstandingCount())
}

func TestCodenameIsDeterministicAndTwoWords(t *testing.T) {
	var token [32]byte
	token[0], token[1] = 0, 0
	require.Equal(t, Codename(token), Codename(token))
	require.Contains(t, Codename(token), " ")
}
