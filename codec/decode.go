package codec

import (
	"bytes"
	"io"
)

// Decode reads one complete control packet from r: the fixed header, then
// exactly RemainingLength bytes of variable header and payload. It never
// reads past the packet boundary, so callers can share r across many calls
// without a framing desync.
func Decode(r io.Reader) (Packet, error) {
	header, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}
	body := io.LimitReader(r, int64(header.RemainingLength))

	switch header.Type {
	case ConnectType:
		return decodeConnect(body)
	case ConnackType:
		return decodeConnack(header, body)
	case PublishType:
		return decodePublish(header, body)
	case PubackType:
		return decodePidOnly(header, body, func(pid PacketIdentifier) Packet { return Puback{Pid: pid} })
	case PubrecType:
		return decodePidOnly(header, body, func(pid PacketIdentifier) Packet { return Pubrec{Pid: pid} })
	case PubrelType:
		return decodePidOnly(header, body, func(pid PacketIdentifier) Packet { return Pubrel{Pid: pid} })
	case PubcompType:
		return decodePidOnly(header, body, func(pid PacketIdentifier) Packet { return Pubcomp{Pid: pid} })
	case UnsubackType:
		return decodePidOnly(header, body, func(pid PacketIdentifier) Packet { return Unsuback{Pid: pid} })
	case SubscribeType:
		return decodeSubscribe(body)
	case SubackType:
		return decodeSuback(body)
	case UnsubscribeType:
		return decodeUnsubscribe(body)
	case PingreqType:
		return Pingreq{}, nil
	case PingrespType:
		return Pingresp{}, nil
	case DisconnectType:
		return Disconnect{}, nil
	default:
		return nil, ErrUnsupportedPacketType
	}
}

func decodePidOnly(header Header, r io.Reader, build func(PacketIdentifier) Packet) (Packet, error) {
	if header.RemainingLength != 2 {
		return nil, ErrPayloadSizeIncorrect
	}
	n, err := decode16(r)
	if err != nil {
		return nil, err
	}
	return build(PacketIdentifier(n)), nil
}

func decodeConnect(r io.Reader) (Packet, error) {
	name, err := decodeString(r)
	if err != nil {
		return nil, err
	}
	var levelBuf [1]byte
	if _, err := io.ReadFull(r, levelBuf[:]); err != nil {
		return nil, wrapIOErr(err)
	}
	protocol, err := ParseProtocol(name, levelBuf[0])
	if err != nil {
		return nil, err
	}

	var flagsBuf [1]byte
	if _, err := io.ReadFull(r, flagsBuf[:]); err != nil {
		return nil, wrapIOErr(err)
	}
	flags := flagsBuf[0]

	keepAlive, err := decode16(r)
	if err != nil {
		return nil, err
	}

	clientID, err := decodeString(r)
	if err != nil {
		return nil, err
	}

	c := Connect{
		Protocol:     protocol,
		KeepAlive:    uint16(keepAlive),
		ClientID:     clientID,
		CleanSession: flags&0x02 != 0,
	}

	willFlag := flags&0x04 != 0
	if !willFlag && flags&0b00111000 != 0 {
		return nil, ErrIncorrectPacketFormat
	}

	if willFlag {
		willTopic, err := decodeString(r)
		if err != nil {
			return nil, err
		}
		willMessage, err := decodeBytes(r)
		if err != nil {
			return nil, err
		}
		willQoS, err := ParseQoS((flags >> 3) & 0x03)
		if err != nil {
			return nil, err
		}
		c.LastWill = &LastWill{
			Topic:   willTopic,
			Message: willMessage,
			QoS:     willQoS,
			Retain:  flags&0x20 != 0,
		}
	}

	if flags&0x80 != 0 {
		userName, err := decodeString(r)
		if err != nil {
			return nil, err
		}
		c.UserName = userName
		c.HasUserName = true
	}

	if flags&0x40 != 0 {
		password, err := decodeBytes(r)
		if err != nil {
			return nil, err
		}
		c.Password = password
		c.HasPassword = true
	}

	return c, nil
}

func decodeConnack(header Header, r io.Reader) (Packet, error) {
	if header.RemainingLength != 2 {
		return nil, ErrPayloadSizeIncorrect
	}
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, wrapIOErr(err)
	}
	code, err := ParseConnectReturnCode(buf[1])
	if err != nil {
		return nil, err
	}
	return Connack{SessionPresent: buf[0]&0x01 != 0, ReturnCode: code}, nil
}

func decodePublish(header Header, r io.Reader) (Packet, error) {
	topic, err := decodeString(r)
	if err != nil {
		return nil, err
	}

	var pid PacketIdentifier
	if header.QoS > AtMostOnce {
		n, err := decode16(r)
		if err != nil {
			return nil, err
		}
		pid = PacketIdentifier(n)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapIOErr(err)
	}

	return Publish{
		Dup:     header.Dup,
		QoS:     header.QoS,
		Retain:  header.Retain,
		Topic:   topic,
		Pid:     pid,
		Payload: payload,
	}, nil
}

func decodeSubscribe(r io.Reader) (Packet, error) {
	n, err := decode16(r)
	if err != nil {
		return nil, err
	}
	s := Subscribe{Pid: PacketIdentifier(n)}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapIOErr(err)
	}
	body := bytes.NewReader(rest)

	for body.Len() > 0 {
		filter, err := decodeString(body)
		if err != nil {
			return nil, err
		}
		var qosBuf [1]byte
		if _, err := io.ReadFull(body, qosBuf[:]); err != nil {
			return nil, wrapIOErr(err)
		}
		qos, err := ParseQoS(qosBuf[0])
		if err != nil {
			return nil, err
		}
		s.Topics = append(s.Topics, SubscribeTopic{Filter: filter, QoS: qos})
	}

	if len(s.Topics) == 0 {
		return nil, ErrPayloadRequired
	}
	return s, nil
}

func decodeSuback(r io.Reader) (Packet, error) {
	n, err := decode16(r)
	if err != nil {
		return nil, err
	}
	s := Suback{Pid: PacketIdentifier(n)}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapIOErr(err)
	}
	for _, b := range rest {
		code, err := decodeSubscribeReturnCode(b)
		if err != nil {
			return nil, err
		}
		s.ReturnCodes = append(s.ReturnCodes, code)
	}
	return s, nil
}

func decodeUnsubscribe(r io.Reader) (Packet, error) {
	n, err := decode16(r)
	if err != nil {
		return nil, err
	}
	u := Unsubscribe{Pid: PacketIdentifier(n)}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapIOErr(err)
	}
	body := bytes.NewReader(rest)

	for body.Len() > 0 {
		filter, err := decodeString(body)
		if err != nil {
			return nil, err
		}
		u.Topics = append(u.Topics, filter)
	}

	if len(u.Topics) == 0 {
		return nil, ErrPayloadRequired
	}
	return u, nil
}
