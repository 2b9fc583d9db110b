// Package udp is the UDP socket I/O collaborator: a thin wrapper
// around net.UDPConn that turns the socket into channels, matching
// the shape start_static_node's udp::listen() call expects (a
// low-priority send queue, a normal send queue, and a receive
// channel), plus a clean shutdown path.
package udp

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"

	"github.com/pmailnet/relaynode/pkg/onion"
)

// RawEncryptedMessage is an undecoded onion packet bound for, or
// arriving from, addr. Unlike the original's fixed [u8; PACKET_LENGTH]
// array, Data here varies in length with the real hop count (see
// SPEC_FULL.md's PACKET_LENGTH decision) - net.UDPConn already
// delivers one whole datagram per read regardless of its size.
type RawEncryptedMessage struct {
	Addr netip.AddrPort
	Data []byte
}

// readBufferSize comfortably covers onion.MaxPacketSize plus slack for
// any future larger message variants; a packet bigger than this is
// truncated by the kernel before we ever see it, which is fine since
// it could never have been a packet we emitted.
const readBufferSize = onion.MaxPacketSize + 256

// Conn is a listening UDP socket plumbed into channels.
type Conn struct {
	sock *net.UDPConn

	recv chan RawEncryptedMessage
	send chan RawEncryptedMessage
	low  chan RawEncryptedMessage

	cancel context.CancelFunc
}

// Listen opens a UDP socket on addr and starts its reader/writer
// goroutines. Callers receive inbound packets from Recv(), and submit
// outbound packets via Send()/SendLowPriority().
func Listen(addr netip.AddrPort) (*Conn, error) {
	sock, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("udp: listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		sock:   sock,
		recv:   make(chan RawEncryptedMessage, 256),
		send:   make(chan RawEncryptedMessage, 256),
		low:    make(chan RawEncryptedMessage, 256),
		cancel: cancel,
	}

	go c.readLoop(ctx)
	go c.writeLoop(ctx)
	return c, nil
}

// Recv is the channel of inbound packets. It is closed once Close has
// stopped the reader goroutine.
func (c *Conn) Recv() <-chan RawEncryptedMessage { return c.recv }

// Send submits a packet for normal-priority delivery - used for
// traffic this node is relaying or delivering promptly.
func (c *Conn) Send(msg RawEncryptedMessage) {
	select {
	case c.send <- msg:
	default:
		log.Printf("udp: normal send queue full, dropping packet to %s", msg.Addr)
	}
}

// SendLowPriority submits a packet that should only go out once the
// normal queue is empty - used for this node's own maintenance
// traffic (greetings/whoami), which should never crowd out relayed
// packets.
func (c *Conn) SendLowPriority(msg RawEncryptedMessage) {
	select {
	case c.low <- msg:
	default:
		log.Printf("udp: low-priority send queue full, dropping packet to %s", msg.Addr)
	}
}

// Close stops the reader/writer goroutines and closes the socket.
func (c *Conn) Close() error {
	c.cancel()
	return c.sock.Close()
}

// LocalAddr reports the address the socket actually bound to, useful
// when addr was given with a zero port.
func (c *Conn) LocalAddr() netip.AddrPort {
	return c.sock.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.recv)
	buf := make([]byte, readBufferSize)
	for {
		n, from, err := c.sock.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("udp: read error: %v", err)
				continue
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		msg := RawEncryptedMessage{Addr: from, Data: data}
		select {
		case c.recv <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop prefers normal-priority traffic: it only pulls from low
// when nothing normal-priority is waiting.
func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			c.writeOne(msg)
		default:
			select {
			case <-ctx.Done():
				return
			case msg := <-c.send:
				c.writeOne(msg)
			case msg := <-c.low:
				c.writeOne(msg)
			}
		}
	}
}

func (c *Conn) writeOne(msg RawEncryptedMessage) {
	if _, err := c.sock.WriteToUDPAddrPort(msg.Data, msg.Addr); err != nil {
		log.Printf("udp: write to %s failed: %v", msg.Addr, err)
	}
}
