package session

import (
	"time"

	"github.com/solvik/mqttc/codec"
)

// Payload is the shared byte buffer backing a Message. It has no mutating
// methods and is never copied: Go's garbage collector and slice sharing
// stand in for a reference count. Bytes hands out the backing slice itself,
// so nothing prevents a caller from writing through it.
type Payload struct {
	bytes []byte
}

// NewPayload wraps b. The caller must not mutate b after this call.
func NewPayload(b []byte) Payload { return Payload{bytes: b} }

// Bytes returns the payload's bytes. The returned slice must not be
// mutated; callers that need a private copy should copy it themselves.
func (p Payload) Bytes() []byte { return p.bytes }

// Len returns the payload length in bytes.
func (p Payload) Len() int { return len(p.bytes) }

// Message is the application-level view of a PUBLISH, decoupled from the
// wire packet so a message retrieved from a store on redelivery looks the
// same as one freshly decoded off the transport.
type Message struct {
	Topic   string
	QoS     codec.QoS
	Retain  bool
	Pid     codec.PacketIdentifier
	Payload Payload
}

// Subscription records a granted subscription: which SUBSCRIBE it came
// from, the filter, and the QoS the broker granted (which may be lower than
// requested).
type Subscription struct {
	Pid    codec.PacketIdentifier
	Filter string
	QoS    codec.QoS
}

// EventKind labels a ConnectionEvent.
type EventKind int

const (
	EventConnectAttempt EventKind = iota
	EventConnack
	EventPingSent
	EventPingReceived
	EventPublishSent
	EventMessageDelivered
	EventReconnectAttempt
)

func (k EventKind) String() string {
	switch k {
	case EventConnectAttempt:
		return "ConnectAttempt"
	case EventConnack:
		return "Connack"
	case EventPingSent:
		return "PingSent"
	case EventPingReceived:
		return "PingReceived"
	case EventPublishSent:
		return "PublishSent"
	case EventMessageDelivered:
		return "MessageDelivered"
	case EventReconnectAttempt:
		return "ReconnectAttempt"
	default:
		return "Unknown"
	}
}

// ConnectionEvent is an optional diagnostics event emitted to an EventSink.
// Purely additive: it never changes protocol behavior.
type ConnectionEvent struct {
	Kind       EventKind
	At         time.Time
	RoundTrip  time.Duration
	HasLatency bool
}

// EventSink receives ConnectionEvents synchronously on the calling
// goroutine. A sink must not block or re-enter the Client.
type EventSink func(ConnectionEvent)
