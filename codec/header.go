package codec

import "io"

// PacketType is the upper nibble of the first fixed-header byte.
type PacketType byte

const (
	ConnectType     PacketType = 1
	ConnackType     PacketType = 2
	PublishType     PacketType = 3
	PubackType      PacketType = 4
	PubrecType      PacketType = 5
	PubrelType      PacketType = 6
	PubcompType     PacketType = 7
	SubscribeType   PacketType = 8
	SubackType      PacketType = 9
	UnsubscribeType PacketType = 10
	UnsubackType    PacketType = 11
	PingreqType     PacketType = 12
	PingrespType    PacketType = 13
	DisconnectType  PacketType = 14
)

// Header is the decoded fixed header: the packet type, its four flag bits,
// and the remaining length that bounds the variable header plus payload.
type Header struct {
	Type            PacketType
	Dup             bool
	QoS             QoS
	Retain          bool
	RemainingLength int
}

// decodeHeader reads and validates the fixed header. Flag validation happens
// here, before any variable-header bytes are read, so a PUBLISH with an
// invalid QoS never causes the decoder to touch its topic name or payload.
func decodeHeader(r io.Reader) (Header, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, wrapIOErr(err)
	}
	typ := PacketType(b[0] >> 4)
	flags := b[0] & 0x0F

	remaining, err := DecodeRemainingLength(r)
	if err != nil {
		return Header{}, err
	}

	h := Header{Type: typ, RemainingLength: remaining}

	switch typ {
	case PublishType:
		h.Dup = flags&0x08 != 0
		h.Retain = flags&0x01 != 0
		q, err := ParseQoS((flags >> 1) & 0x03)
		if err != nil {
			return Header{}, err
		}
		h.QoS = q
	case SubscribeType, UnsubscribeType, PubrelType:
		if flags != 0x02 {
			return Header{}, ErrIncorrectPacketFormat
		}
	case PingreqType, PingrespType:
		if remaining != 0 {
			return Header{}, ErrIncorrectPacketFormat
		}
	case ConnectType, ConnackType, PubackType, PubrecType, PubcompType,
		SubackType, UnsubackType, DisconnectType:
		// Flags are reserved-zero for these types in 3.1.1 but brokers in
		// the wild are not strict about it; the codec does not enforce it.
	default:
		return Header{}, ErrUnsupportedPacketType
	}

	return h, nil
}

// fixedHeaderByte packs a packet type and its flag bits into the first
// fixed-header byte.
func fixedHeaderByte(typ PacketType, dup bool, qos QoS, retain bool) byte {
	b := byte(typ) << 4
	if dup {
		b |= 0x08
	}
	b |= byte(qos) << 1
	if retain {
		b |= 0x01
	}
	return b
}
