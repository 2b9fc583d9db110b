// Package dht holds a node's view of the network: which public keys
// live at which addresses, the route planner that turns that view
// into onion routes, and the maintenance driver that keeps the view
// fresh. It is the Go home of the original Rust DHT struct and its
// impl block.
package dht

import (
	"fmt"
	"math/rand"
	"net/netip"
	"sync"
	"time"

	"github.com/pmailnet/relaynode/pkg/onion"
	"github.com/pmailnet/relaynode/pkg/wire"
)

// ErrSelfAddressUnknown is returned by operations that need to know
// this node's own reachable address (route planning, the last hop of
// a greeting loop) before a who-am-i round trip has told it one.
var ErrSelfAddressUnknown = fmt.Errorf("dht: this node's own address is not yet known")

// ErrEmptyTable is returned when an operation needs to draw a random
// peer but the table holds none.
var ErrEmptyTable = fmt.Errorf("dht: routing table is empty")

type outstanding struct {
	box       *onion.Box
	createdAt time.Time
}

// Table is a node's routing state: the address<->public-key mappings
// learned from gifts, this node's own key pair, and the set of onion
// boxes awaiting a response. All access is serialized by a single
// exclusive lock, matching spec.md's description of the original's
// Arc<Mutex<DHT>>.
type Table struct {
	mu sync.Mutex

	addresses map[wire.PublicKey]netip.AddrPort
	pubkeys   map[netip.AddrPort]wire.PublicKey

	myKey wire.KeyPair

	onionboxen map[[32]byte]outstanding
}

// New builds a Table seeded with the hard-coded bootstrap peer,
// matching DHT::new's dht.accept_single_gift(&bingley()).
func New(myKey wire.KeyPair) *Table {
	t := &Table{
		addresses:  make(map[wire.PublicKey]netip.AddrPort),
		pubkeys:    make(map[netip.AddrPort]wire.PublicKey),
		myKey:      myKey,
		onionboxen: make(map[[32]byte]outstanding),
	}
	t.AcceptSingleGift(bingley())
	return t
}

// NewWithBootstrap builds a Table seeded with bingley plus an
// operator-supplied bootstrap list, per SPEC_FULL.md's config-driven
// bootstrap peers. bingley is always kept.
func NewWithBootstrap(myKey wire.KeyPair, bootstrap []wire.RoutingGift) *Table {
	t := New(myKey)
	for _, g := range bootstrap {
		t.AcceptSingleGift(g)
	}
	return t
}

// MyKeyPair returns this node's own key pair.
func (t *Table) MyKeyPair() wire.KeyPair {
	return t.myKey
}

// AcceptSingleGift records one (address, public key) pairing.
func (t *Table) AcceptSingleGift(g wire.RoutingGift) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acceptSingleGiftLocked(g)
}

func (t *Table) acceptSingleGiftLocked(g wire.RoutingGift) {
	t.addresses[g.Key] = g.Addr
	t.pubkeys[g.Addr] = g.Key
}

// AcceptGift records every gift in a batch.
func (t *Table) AcceptGift(gifts [wire.NumInResponse]wire.RoutingGift) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, g := range gifts {
		t.acceptSingleGiftLocked(g)
	}
}

// Size reports how many (address, key) pairs the table currently
// holds, for /debug/dht and metrics.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.addresses)
}

// OutstandingCount reports how many onion boxes are awaiting a
// response.
func (t *Table) OutstandingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.onionboxen)
}

// Snapshot returns a copy of the address table for diagnostics
// (/debug/dht, the startup table dump). Never used on a hot path.
func (t *Table) Snapshot() map[wire.PublicKey]netip.AddrPort {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[wire.PublicKey]netip.AddrPort, len(t.addresses))
	for k, v := range t.addresses {
		out[k] = v
	}
	return out
}

func (t *Table) randomKeyLocked() (wire.PublicKey, error) {
	if len(t.addresses) == 0 {
		return wire.PublicKey{}, ErrEmptyTable
	}
	i := rand.Intn(len(t.addresses))
	for k := range t.addresses {
		if i == 0 {
			return k, nil
		}
		i--
	}
	panic("unreachable: index exhausted the map")
}

// RandomGift draws a uniformly random (address, key) pair from the
// table.
func (t *Table) RandomGift() (wire.RoutingGift, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.randomGiftLocked()
}

func (t *Table) randomGiftLocked() (wire.RoutingGift, error) {
	k, err := t.randomKeyLocked()
	if err != nil {
		return wire.RoutingGift{}, err
	}
	return wire.RoutingGift{Key: k, Addr: t.addresses[k]}, nil
}

// ConstructGift builds a batch of NumInResponse random gifts to hand
// out to a peer, matching DHT::construct_gift.
func (t *Table) ConstructGift() ([wire.NumInResponse]wire.RoutingGift, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [wire.NumInResponse]wire.RoutingGift
	for i := range out {
		g, err := t.randomGiftLocked()
		if err != nil {
			return out, err
		}
		out[i] = g
	}
	return out, nil
}

// selfGiftLocked returns this node's own (address, key) pair, failing
// with ErrSelfAddressUnknown until a who-am-i round trip has taught it
// one (this node's key pair is always known; its externally reachable
// address is learned, not configured).
func (t *Table) selfGiftLocked() (wire.RoutingGift, error) {
	addr, ok := t.addresses[t.myKey.Public]
	if !ok {
		return wire.RoutingGift{}, ErrSelfAddressUnknown
	}
	return wire.RoutingGift{Key: t.myKey.Public, Addr: addr}, nil
}

// PickRoute draws a random walk of 3-6 distinct-from-previous-hop
// gifts, never routing through the same key twice in a row, and
// aborts to a partial (possibly empty) route the moment it draws
// itself rather than create a loop back through this node early.
func (t *Table) PickRoute() ([]wire.RoutingGift, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldGift, err := t.selfGiftLocked()
	if err != nil {
		return nil, err
	}

	hops := 3 + rand.Intn(4) // 3..6 inclusive
	out := make([]wire.RoutingGift, 0, hops)
	for i := 0; i < hops; i++ {
		newGift, err := t.randomGiftLocked()
		if err != nil {
			return out, err
		}
		for newGift.Key == oldGift.Key {
			newGift, err = t.randomGiftLocked()
			if err != nil {
				return out, err
			}
		}
		if newGift.Key == t.myKey.Public {
			// No point creating a loop that passes through myself.
			return out, nil
		}
		out = append(out, newGift)
		oldGift = newGift
	}
	return out, nil
}

// StoreOutstanding records a constructed Box under its own return
// magic so a later reply can be matched against it.
func (t *Table) StoreOutstanding(b *onion.Box) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onionboxen[b.ReturnMagic()] = outstanding{box: b, createdAt: time.Now()}
}

// PeekOutstanding looks up a Box by return magic without consuming it.
func (t *Table) PeekOutstanding(magic [32]byte) (*onion.Box, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.onionboxen[magic]
	if !ok {
		return nil, false
	}
	return o.box, true
}

// RemoveOutstanding drops a Box from the outstanding set. The packet
// handler calls it as soon as an inbound packet's prefix matches the
// Box's return magic, whether or not the return packet then decrypts,
// so each token is consumed at most once.
func (t *Table) RemoveOutstanding(magic [32]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.onionboxen, magic)
}

// SweepOutstanding evicts onion boxes older than maxAge. A box whose
// response never arrives (dropped packet, a peer that never answers)
// would otherwise sit in the table forever.
func (t *Table) SweepOutstanding(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	evicted := 0
	for k, o := range t.onionboxen {
		if o.createdAt.Before(cutoff) {
			delete(t.onionboxen, k)
			evicted++
		}
	}
	return evicted
}

// RunSweeper starts a ticker goroutine that periodically calls
// SweepOutstanding, grounded on the teacher onion router's
// cleanupReplayCache ticker pattern. It stops when stop is closed.
func (t *Table) RunSweeper(interval, maxAge time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.SweepOutstanding(maxAge)
			case <-stop:
				return
			}
		}
	}()
}
