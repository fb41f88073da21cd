package codec

// Protocol identifies the MQTT wire revision named in CONNECT's protocol
// name/level fields.
type Protocol struct {
	Name  string
	Level byte
}

var (
	// MQIsdp is MQTT 3.1, the original protocol name before the OASIS
	// standardization renamed it.
	MQIsdp = Protocol{Name: "MQIsdp", Level: 3}
	// MQTT is MQTT 3.1.1.
	MQTT = Protocol{Name: "MQTT", Level: 4}
)

// ParseProtocol validates a decoded (name, level) pair against the two
// revisions this codec understands.
func ParseProtocol(name string, level byte) (Protocol, error) {
	switch name {
	case MQIsdp.Name:
		if level != MQIsdp.Level {
			return Protocol{}, ErrUnsupportedProtocolVersion
		}
		return MQIsdp, nil
	case MQTT.Name:
		if level != MQTT.Level {
			return Protocol{}, ErrUnsupportedProtocolVersion
		}
		return MQTT, nil
	default:
		return Protocol{}, ErrUnsupportedProtocolName
	}
}
