package dht

import (
	"fmt"
	"log"
	"math/rand"
	"net/netip"

	"github.com/pmailnet/relaynode/pkg/onion"
	"github.com/pmailnet/relaynode/pkg/wire"
)

// ErrEmptyRoute is returned by Greet when the route planner couldn't
// draw even a single hop (an empty table, or an immediate self-draw).
var ErrEmptyRoute = fmt.Errorf("dht: route planner produced an empty route")

// Greet builds a greeting loop: a route of up to 6 hops (3-6 unless
// the route planner stopped early on drawing this node) that starts
// and ends at this node, with one randomly chosen hop along the way
// marked as the payload's real destination. It mirrors DHT::greet.
func (t *Table) Greet() (netip.AddrPort, *onion.Box, error) {
	route, err := t.PickRoute()
	if err != nil {
		return netip.AddrPort{}, nil, err
	}
	if len(route) == 0 {
		return netip.AddrPort{}, nil, ErrEmptyRoute
	}

	recipient := rand.Intn(len(route))

	selfAddr, err := t.selfAddr()
	if err != nil {
		return netip.AddrPort{}, nil, err
	}

	log.Printf("dht: sending a greeting loop of length %d", len(route))
	hops := make([]onion.Hop, len(route))
	var delay uint32
	for i, gift := range route {
		nextAddr := selfAddr
		if i < len(route)-1 {
			nextAddr = route[i+1].Addr
		}
		if i == recipient {
			log.Printf("dht:   => %s", gift.Addr)
		} else {
			log.Printf("dht:      %s", gift.Addr)
		}
		delay += 10 + uint32(rand.Intn(60))
		ri := wire.NewRoutingInfo(nextAddr, delay)
		ri.IsForMe = i == recipient
		hops[i] = onion.Hop{PublicKey: gift.Key, Routing: ri}
	}

	gift, err := t.ConstructGift()
	if err != nil {
		return netip.AddrPort{}, nil, err
	}
	payload := wire.Greetings(gift).Encode()

	box, err := onion.Construct(hops, recipient, t.myKey, payload)
	if err != nil {
		return netip.AddrPort{}, nil, err
	}
	log.Printf("dht: greeting code name: %s", Codename(box.ReturnMagic()))
	return route[0].Addr, box, nil
}

// WhoAmI sends a single-hop probe to who, asking it to report back
// the address it actually saw the packet arrive from - the only way a
// node behind a NAT can learn its own externally visible port.
func (t *Table) WhoAmI(who wire.RoutingGift) (netip.AddrPort, *onion.Box, error) {
	log.Printf("dht: sending a whoami to %s", who.Addr)

	var gifts [wire.NumInResponse]wire.RoutingGift
	for i := range gifts {
		gifts[i] = who
	}
	payload := wire.Greetings(gifts).Encode()

	ri := wire.NewRoutingInfo(who.Addr, 60)
	ri.IsForMe = true
	ri.WhoAmI = true
	hops := []onion.Hop{{PublicKey: who.Key, Routing: ri}}

	box, err := onion.Construct(hops, 0, t.myKey, payload)
	if err != nil {
		return netip.AddrPort{}, nil, err
	}
	log.Printf("dht: whoami code name: %s", Codename(box.ReturnMagic()))
	return who.Addr, box, nil
}

// Maintenance decides, once per tick, whether this node most needs to
// learn its own address (table too thin, or self-address unknown, or
// simply one time in ten to keep refreshing it) or can instead send a
// routine greeting loop. It mirrors DHT::maintenance.
func (t *Table) Maintenance() (netip.AddrPort, *onion.Box, error) {
	needsWhoAmI := func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		_, knowSelf := t.addresses[t.myKey.Public]
		return !knowSelf || len(t.addresses) < 2 || rand.Intn(10) == 0
	}()

	if needsWhoAmI {
		log.Printf("dht: routing table:")
		for k, a := range t.Snapshot() {
			log.Printf("dht:  %s -> %s", k, a)
		}
		gift, err := t.RandomGift()
		if err != nil {
			return netip.AddrPort{}, nil, err
		}
		return t.WhoAmI(gift)
	}
	return t.Greet()
}

func (t *Table) selfAddr() (netip.AddrPort, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr, ok := t.addresses[t.myKey.Public]
	if !ok {
		return netip.AddrPort{}, ErrSelfAddressUnknown
	}
	return addr, nil
}
