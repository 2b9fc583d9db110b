package wire

import "fmt"

// MessageTag identifies a Message variant by its first wire byte.
type MessageTag byte

const (
	TagGreetings     MessageTag = 'g'
	TagResponse      MessageTag = 'r'
	TagPickUp        MessageTag = 'p' // reserved, not implemented
	TagForwardPlease MessageTag = 'f' // reserved, not implemented
)

// ErrReservedOpcode is returned by DecodeMessage for the reserved p/f
// tags. Callers must treat this as non-fatal: log and drop, never crash.
var ErrReservedOpcode = fmt.Errorf("wire: reserved opcode, not yet implemented")

// ErrUnknownOpcode is returned for a tag byte outside {g, r, p, f}.
var ErrUnknownOpcode = fmt.Errorf("wire: unknown message opcode")

// Message is the decoded form of a PAYLOAD_LENGTH-byte payload. Exactly
// one of the fields below is meaningful, selected by Tag.
type Message struct {
	Tag MessageTag

	// Greetings / Response
	Gifts [NumInResponse]RoutingGift

	// PickUp / ForwardPlease
	Destination PublicKey
	Inner       [USERMessageLength]byte
}

// Greetings builds a Greetings Message from a gift set.
func Greetings(gifts [NumInResponse]RoutingGift) Message {
	return Message{Tag: TagGreetings, Gifts: gifts}
}

// Response builds a Response Message from a gift set.
func Response(gifts [NumInResponse]RoutingGift) Message {
	return Message{Tag: TagResponse, Gifts: gifts}
}

// Encode writes m into its fixed PayloadLength-byte wire form. Encoders
// are total: every tag, including the reserved p/f ones, has a defined
// on-wire layout so a future version can enable them without breaking
// framing.
func (m Message) Encode() [PayloadLength]byte {
	var out [PayloadLength]byte
	out[0] = byte(m.Tag)
	switch m.Tag {
	case TagGreetings, TagResponse:
		gifts := EncodeGifts(m.Gifts)
		copy(out[1:1+GiftBlockSize], gifts[:])
	case TagPickUp:
		copy(out[1:1+PublicKeySize], m.Destination[:])
		gifts := EncodeGifts(m.Gifts)
		copy(out[1+PublicKeySize:1+PublicKeySize+GiftBlockSize], gifts[:])
	case TagForwardPlease:
		copy(out[1:1+PublicKeySize], m.Destination[:])
		copy(out[1+PublicKeySize:1+PublicKeySize+USERMessageLength], m.Inner[:])
	}
	return out
}

// DecodeMessage parses a PAYLOAD_LENGTH-byte payload. It never panics:
// the reserved p/f tags and any unrecognized tag return a sentinel
// error instead of crashing, per spec.
func DecodeMessage(in [PayloadLength]byte) (Message, error) {
	switch MessageTag(in[0]) {
	case TagGreetings:
		var block [GiftBlockSize]byte
		copy(block[:], in[1:1+GiftBlockSize])
		return Message{Tag: TagGreetings, Gifts: DecodeGifts(block)}, nil
	case TagResponse:
		var block [GiftBlockSize]byte
		copy(block[:], in[1:1+GiftBlockSize])
		return Message{Tag: TagResponse, Gifts: DecodeGifts(block)}, nil
	case TagPickUp, TagForwardPlease:
		return Message{Tag: MessageTag(in[0])}, ErrReservedOpcode
	default:
		return Message{}, ErrUnknownOpcode
	}
}
