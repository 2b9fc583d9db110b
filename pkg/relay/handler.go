// Package relay is the node's network-facing surface: the packet
// handler that decides whether an inbound onion layer is addressed to
// this node or must be relayed on, the delayed sender that honors each
// hop's requested arrival time, and the per-source ingress limiter
// guarding both. It is the Go home of start_static_node's main loop.
package relay

import (
	"log"

	"github.com/pmailnet/relaynode/pkg/dht"
	"github.com/pmailnet/relaynode/pkg/onion"
	"github.com/pmailnet/relaynode/pkg/transport/udp"
	"github.com/pmailnet/relaynode/pkg/wire"
)

// Recorder is the subset of pkg/metrics.Metrics the handler reports
// outcomes to. An interface here keeps relay tests free of a
// Prometheus registry.
type Recorder interface {
	PacketForwarded()
	PacketDelivered()
	PacketDropped(reason string)
	ResponseMatched()
}

type noopRecorder struct{}

func (noopRecorder) PacketForwarded()     {}
func (noopRecorder) PacketDelivered()     {}
func (noopRecorder) PacketDropped(string) {}
func (noopRecorder) ResponseMatched()     {}

// Handler wires a DHT table to a UDP connection and processes every
// packet the connection receives.
type Handler struct {
	table   *dht.Table
	conn    *udp.Conn
	limiter *SourceLimiter
	metrics Recorder
}

// NewHandler builds a packet Handler. Pass a nil limiter to disable
// ingress rate limiting (e.g. in tests), and a nil metrics Recorder to
// use a no-op one.
func NewHandler(table *dht.Table, conn *udp.Conn, limiter *SourceLimiter, metrics Recorder) *Handler {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Handler{table: table, conn: conn, limiter: limiter, metrics: metrics}
}

// Run processes packets from conn.Recv() until it closes.
func (h *Handler) Run() {
	for msg := range h.conn.Recv() {
		if h.limiter != nil && !h.limiter.Allow(msg.Addr.Addr()) {
			h.metrics.PacketDropped("rate_limited")
			continue
		}
		h.HandlePacket(msg)
	}
}

// HandlePacket processes exactly one inbound packet: Case A (the
// onion opens with this node's secret key) or Case B (it doesn't, so
// it might be a response to something this node sent earlier).
func (h *Handler) HandlePacket(msg udp.RawEncryptedMessage) {
	myKey := h.table.MyKeyPair()

	opened, err := onion.Open(myKey.Secret, msg.Data)
	if err != nil {
		h.handleUnopenable(msg)
		return
	}

	routing := opened.Routing
	if !routing.IsForMe {
		log.Printf("relay: relaying packet %s -> %s", msg.Addr, routing.Addr)
		h.metrics.PacketForwarded()
		SendDelayed(h.conn, routing.ETA, udp.RawEncryptedMessage{Addr: routing.Addr, Data: opened.Packet()})
		return
	}

	payload, err := opened.Payload(myKey)
	if err != nil {
		log.Printf("relay: unable to read message from %s: %v", msg.Addr, err)
		h.metrics.PacketDropped("payload_open_failed")
		return
	}
	h.metrics.PacketDelivered()

	if routing.WhoAmI {
		h.handleWhoAmI(msg, opened)
		return
	}
	h.handleForMe(msg, opened, routing, payload)
}

func (h *Handler) handleWhoAmI(msg udp.RawEncryptedMessage, opened *onion.OpenedOnion) {
	log.Printf("relay: got whoami from %s", msg.Addr)

	senderKey, _ := opened.Key()
	gift, err := h.table.ConstructGift()
	if err != nil {
		log.Printf("relay: cannot answer whoami, table too small: %v", err)
		return
	}
	gift[0] = wire.RoutingGift{Addr: msg.Addr, Key: senderKey}
	h.table.AcceptSingleGift(gift[0])

	response := wire.Response(gift).Encode()
	if err := opened.Respond(h.table.MyKeyPair(), response); err != nil {
		log.Printf("relay: failed to seal whoami response: %v", err)
		return
	}
	// Reply directly to the address the packet actually arrived from,
	// not to routing.Addr - the who-am-i route targets the asker's own
	// address, which is exactly what this node is telling it.
	SendDelayed(h.conn, opened.Routing.ETA, udp.RawEncryptedMessage{Addr: msg.Addr, Data: opened.Packet()})
}

func (h *Handler) handleForMe(msg udp.RawEncryptedMessage, opened *onion.OpenedOnion, routing wire.RoutingInfo, payload [wire.PayloadLength]byte) {
	decoded, err := wire.DecodeMessage(payload)
	if err != nil {
		log.Printf("relay: undecodable message from %s: %v", msg.Addr, err)
		return
	}

	switch decoded.Tag {
	case wire.TagGreetings:
		h.table.AcceptGift(decoded.Gifts)
		log.Printf("relay: got greeting from %s", msg.Addr)

		gift, err := h.table.ConstructGift()
		if err != nil {
			log.Printf("relay: cannot answer greeting, table too small: %v", err)
			return
		}
		response := wire.Response(gift).Encode()
		if err := opened.Respond(h.table.MyKeyPair(), response); err != nil {
			log.Printf("relay: failed to seal greeting response: %v", err)
			return
		}
		SendDelayed(h.conn, routing.ETA, udp.RawEncryptedMessage{Addr: routing.Addr, Data: opened.Packet()})
	default:
		log.Printf("relay: something else for me from %s (tag %q), not yet handled", msg.Addr, decoded.Tag)
	}
}

func (h *Handler) handleUnopenable(msg udp.RawEncryptedMessage) {
	magic, err := onion.PacketReturnMagic(msg.Data)
	if err != nil {
		log.Printf("relay: malformed packet from %s: %v", msg.Addr, err)
		h.metrics.PacketDropped("malformed")
		return
	}

	box, found := h.table.PeekOutstanding(magic)
	if !found {
		log.Printf("relay: not sure what that was (from %s)", msg.Addr)
		h.metrics.PacketDropped("unmatched")
		return
	}

	payload, err := box.ReadReturn(h.table.MyKeyPair(), msg.Data)
	// A matched token is single-use: it is consumed whether or not the
	// return packet decrypts.
	h.table.RemoveOutstanding(magic)
	if err != nil {
		log.Printf("relay: message illegible!")
		h.metrics.PacketDropped("return_undecodable")
		return
	}
	h.metrics.ResponseMatched()
	log.Printf("relay: response to code name %s!", dht.Codename(magic))

	decoded, err := wire.DecodeMessage(payload)
	if err != nil {
		log.Printf("relay: undecodable response payload: %v", err)
		return
	}
	switch decoded.Tag {
	case wire.TagGreetings:
		log.Printf("relay: greetings is not a valid response")
	case wire.TagResponse:
		h.table.AcceptGift(decoded.Gifts)
		if decoded.Gifts[0].Key == h.table.MyKeyPair().Public {
			log.Printf("relay: my address is %s", decoded.Gifts[0].Addr)
		}
	default:
		log.Printf("relay: %q response not yet handled", decoded.Tag)
	}
}
