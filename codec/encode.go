package codec

import (
	"bytes"
	"fmt"
	"io"
)

// Encode writes p to w as a complete fixed header plus variable header and
// payload. The remaining-length field is computed from the fully-built body
// so it is always correct on the first pass.
func Encode(p Packet, w io.Writer) error {
	var body bytes.Buffer
	var firstByte byte

	switch v := p.(type) {
	case Connect:
		firstByte = fixedHeaderByte(ConnectType, false, AtMostOnce, false)
		if err := encodeConnectBody(v, &body); err != nil {
			return err
		}
	case Connack:
		firstByte = fixedHeaderByte(ConnackType, false, AtMostOnce, false)
		var sp byte
		if v.SessionPresent {
			sp = 0x01
		}
		body.WriteByte(sp)
		body.WriteByte(byte(v.ReturnCode))
	case Publish:
		firstByte = fixedHeaderByte(PublishType, v.Dup, v.QoS, v.Retain)
		encodeStringTo(v.Topic, &body)
		if v.QoS > AtMostOnce {
			encode16(int(v.Pid), &body)
		}
		body.Write(v.Payload)
	case Puback:
		firstByte = fixedHeaderByte(PubackType, false, AtMostOnce, false)
		encode16(int(v.Pid), &body)
	case Pubrec:
		firstByte = fixedHeaderByte(PubrecType, false, AtMostOnce, false)
		encode16(int(v.Pid), &body)
	case Pubrel:
		firstByte = fixedHeaderByte(PubrelType, false, AtLeastOnce, false)
		encode16(int(v.Pid), &body)
	case Pubcomp:
		firstByte = fixedHeaderByte(PubcompType, false, AtMostOnce, false)
		encode16(int(v.Pid), &body)
	case Subscribe:
		firstByte = fixedHeaderByte(SubscribeType, false, AtLeastOnce, false)
		encode16(int(v.Pid), &body)
		for _, t := range v.Topics {
			encodeStringTo(t.Filter, &body)
			body.WriteByte(byte(t.QoS))
		}
	case Suback:
		firstByte = fixedHeaderByte(SubackType, false, AtMostOnce, false)
		encode16(int(v.Pid), &body)
		for _, rc := range v.ReturnCodes {
			body.WriteByte(rc.encode())
		}
	case Unsubscribe:
		firstByte = fixedHeaderByte(UnsubscribeType, false, AtLeastOnce, false)
		encode16(int(v.Pid), &body)
		for _, t := range v.Topics {
			encodeStringTo(t, &body)
		}
	case Unsuback:
		firstByte = fixedHeaderByte(UnsubackType, false, AtMostOnce, false)
		encode16(int(v.Pid), &body)
	case Pingreq:
		firstByte = fixedHeaderByte(PingreqType, false, AtMostOnce, false)
	case Pingresp:
		firstByte = fixedHeaderByte(PingrespType, false, AtMostOnce, false)
	case Disconnect:
		firstByte = fixedHeaderByte(DisconnectType, false, AtMostOnce, false)
	default:
		return fmt.Errorf("codec: %T: %w", p, ErrUnsupportedPacketType)
	}

	remaining, err := EncodeRemainingLength(body.Len())
	if err != nil {
		return err
	}

	var frame bytes.Buffer
	frame.WriteByte(firstByte)
	frame.Write(remaining)
	frame.Write(body.Bytes())

	_, err = w.Write(frame.Bytes())
	return err
}

func encodeConnectBody(c Connect, body *bytes.Buffer) error {
	encodeStringTo(c.Protocol.Name, body)
	body.WriteByte(c.Protocol.Level)

	var flags byte
	if c.CleanSession {
		flags |= 0x02
	}
	if c.LastWill != nil {
		flags |= 0x04
		flags |= byte(c.LastWill.QoS) << 3
		if c.LastWill.Retain {
			flags |= 0x20
		}
	}
	if c.HasUserName {
		flags |= 0x80
	}
	if c.HasPassword {
		flags |= 0x40
	}
	body.WriteByte(flags)

	encode16(int(c.KeepAlive), body)
	encodeStringTo(c.ClientID, body)

	if c.LastWill != nil {
		encodeStringTo(c.LastWill.Topic, body)
		encodeBytesTo(c.LastWill.Message, body)
	}
	if c.HasUserName {
		encodeStringTo(c.UserName, body)
	}
	if c.HasPassword {
		encodeBytesTo(c.Password, body)
	}
	return nil
}
