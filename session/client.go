// Package session implements the synchronous MQTT client session engine:
// connect/handshake, publish/subscribe/unsubscribe, inbound dispatch, QoS1
// and QoS2 acknowledgement flows, keepalive, and reconnection. The engine
// is single-threaded and blocking by design — every public method runs to
// completion on the caller's goroutine with no background work.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solvik/mqttc/codec"
	"github.com/solvik/mqttc/internal/logging"
	"github.com/solvik/mqttc/store"
	"github.com/solvik/mqttc/topicpath"
	"github.com/solvik/mqttc/transport"
)

// state is the engine's connection state machine: Disconnected ->
// Handshake (on Connect) -> Connected.
type state int

const (
	stateDisconnected state = iota
	stateHandshake
	stateConnected
)

// dialFunc opens the transport stream a Client drives the protocol over.
// Connect uses transport.DialTCP by default; tests substitute a
// transport.Mock via WithStream.
type dialFunc func() (transport.Stream, error)

// Client is a single MQTT session: one transport stream, one set of
// pending-ack queues, one subscription set. Not safe for concurrent use —
// the whole point of the design is that it needs no locking because it has
// exactly one owner.
type Client struct {
	opts ClientOptions
	dial dialFunc

	conn  transport.Stream
	state state

	sessionPresent bool
	lastFlush      time.Time
	awaitPing      bool
	pingSentAt     time.Time

	pids pidAllocator

	incomingPub   messageQueue
	incomingRec   messageQueue
	incomingRel   pidQueue
	outgoingAck   messageQueue
	outgoingRec   messageQueue
	outgoingComp  pidQueue
	awaitSuback   subscribeQueue
	awaitUnsuback unsubscribeQueue

	subscriptions map[string]Subscription

	log *logrus.Entry
}

// WithStream overrides the transport Connect dials, using an
// already-established Stream instead — the hook tests use to drive the
// engine against a transport.Mock rather than a real TCP socket.
func WithStream(s transport.Stream) ClientOption {
	return func(o *ClientOptions) { o.presetStream = s }
}

// Connect resolves address, opens a transport stream (TCP, unless
// WithStream supplied one), sends CONNECT, and synchronously awaits
// CONNACK. It fails with a *ConnectionRefusedError on a non-Accepted
// CONNACK, or ErrHandshakeFailed if the first packet back is not CONNACK.
func Connect(address string, options ...ClientOption) (*Client, error) {
	opts := DefaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	if opts.ClientID == "" {
		opts.ClientID = RandomClientID()
	}

	c := &Client{
		opts:          opts,
		subscriptions: make(map[string]Subscription),
		log:           logging.SessionLogger(opts.ClientID),
	}
	if opts.presetStream != nil {
		c.dial = func() (transport.Stream, error) { return opts.presetStream, nil }
	} else {
		c.dial = func() (transport.Stream, error) {
			return transport.DialTCP(address, opts.KeepAlive)
		}
	}

	if err := c.reconnectStream(); err != nil {
		return nil, err
	}
	if err := c.handshake(); err != nil {
		return nil, err
	}
	return c, nil
}

// reconnectStream dials a fresh transport stream and restarts the keep-alive
// clock. Read and write deadlines are set later, by accept and writePacket.
func (c *Client) reconnectStream() error {
	conn, err := c.dial()
	if err != nil {
		return &MqttError{Cause: err}
	}
	c.conn = conn
	c.lastFlush = time.Now()
	return nil
}

// handshake drives CONNECT/CONNACK and sets state to Connected on success.
func (c *Client) handshake() error {
	c.state = stateHandshake
	c.emit(EventConnectAttempt, 0, false)

	if err := c.opts.resolveCredentials(time.Now()); err != nil {
		return err
	}

	connect := codec.Connect{
		Protocol:     c.opts.Protocol,
		KeepAlive:    uint16(c.opts.KeepAlive / time.Second),
		ClientID:     c.opts.ClientID,
		CleanSession: c.opts.CleanSession,
		LastWill:     c.opts.LastWill,
		UserName:     c.opts.UserName,
		HasUserName:  c.opts.HasUserName,
		Password:     c.opts.Password,
		HasPassword:  c.opts.HasPassword,
	}
	if err := c.writePacket(connect); err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}

	if _, err := c.Await(); err != nil {
		return err
	}
	return nil
}

// Publish builds a Message and sends it: QoS0 fires and forgets, QoS1
// assigns a pid and tracks it in outgoingAck until the matching PUBACK,
// QoS2 assigns a pid, persists to the outgoing store (failing
// ErrOutgoingStorageAbsent if none is configured), and tracks it in
// outgoingRec until the PUBREC/PUBREL/PUBCOMP cycle completes.
func (c *Client) Publish(topic string, payload []byte, qos codec.QoS, retain bool) error {
	if _, err := topicpath.ToTopicName(topic); err != nil {
		return fmt.Errorf("session: publish: %w", err)
	}

	msg := Message{Topic: topic, QoS: qos, Retain: retain, Payload: NewPayload(payload)}

	if qos > codec.AtMostOnce {
		msg.Pid = c.pids.next()
	}

	switch qos {
	case codec.AtLeastOnce:
		c.outgoingAck.push(msg)
	case codec.ExactlyOnce:
		if c.opts.OutgoingStore == nil {
			return ErrOutgoingStorageAbsent
		}
		if err := c.opts.OutgoingStore.Put(context.Background(), uint16(msg.Pid), toRecord(msg)); err != nil {
			return &StorageError{Cause: err}
		}
		c.outgoingRec.push(msg)
	}

	if err := c.writePacket(codec.Publish{
		Dup:     false,
		QoS:     qos,
		Retain:  retain,
		Topic:   topic,
		Pid:     msg.Pid,
		Payload: payload,
	}); err != nil {
		return err
	}
	c.emit(EventPublishSent, 0, false)
	return c.flush()
}

// Subscribe assigns a pid, records the pending request, emits SUBSCRIBE,
// and flushes.
func (c *Client) Subscribe(filters []codec.SubscribeTopic) error {
	pid := c.pids.next()
	req := codec.Subscribe{Pid: pid, Topics: filters}
	c.awaitSuback.push(req)
	if err := c.writePacket(req); err != nil {
		return err
	}
	return c.flush()
}

// Unsubscribe mirrors Subscribe with UNSUBSCRIBE/UNSUBACK.
func (c *Client) Unsubscribe(filters []string) error {
	pid := c.pids.next()
	req := codec.Unsubscribe{Pid: pid, Topics: filters}
	c.awaitUnsuback.push(req)
	if err := c.writePacket(req); err != nil {
		return err
	}
	return c.flush()
}

// Ping sends a PINGREQ and marks a pong as outstanding. It fails only on
// I/O; a Timeout while awaitPing is already set is what drives unbind
// during Await.
func (c *Client) Ping() error {
	c.awaitPing = true
	c.pingSentAt = time.Now()
	if err := c.writePacket(codec.Pingreq{}); err != nil {
		return err
	}
	c.emit(EventPingSent, 0, false)
	return c.flush()
}

// Complete confirms user receipt of a delivered QoS2 message: pid must
// match the most recent (back) entry of incomingRel. On match, this emits
// PUBCOMP, flushes, and deletes the message from the incoming store.
// Mismatch is ErrProtocolViolation and leaves incomingRel untouched.
func (c *Client) Complete(pid codec.PacketIdentifier) error {
	back, ok := c.incomingRel.back()
	if !ok || back != pid {
		return ErrProtocolViolation
	}
	c.incomingRel.popBack()

	if err := c.writePacket(codec.Pubcomp{Pid: pid}); err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}
	if c.opts.IncomingStore != nil {
		if err := c.opts.IncomingStore.Delete(context.Background(), uint16(pid)); err != nil {
			return &StorageError{Cause: err}
		}
	}
	return nil
}

// SessionPresent reports the session-present bit from the last CONNACK.
func (c *Client) SessionPresent() bool { return c.sessionPresent }

// Disconnect sends DISCONNECT and flushes; it does not close the
// transport, matching the distinction between a graceful protocol
// disconnect and Terminate's hard transport close.
func (c *Client) Disconnect() error {
	if err := c.writePacket(codec.Disconnect{}); err != nil {
		return err
	}
	return c.flush()
}

// Terminate closes the transport and drops to Disconnected immediately.
// In-flight operations subsequently observe I/O errors, by design.
func (c *Client) Terminate() error {
	return c.unbind()
}

// Reconnect is idempotent if already Connected. Otherwise it redials,
// re-runs the handshake, and resubscribes to the union of all topics
// currently in subscriptions.
func (c *Client) Reconnect() error {
	if c.state == stateConnected {
		c.log.Warn("reconnect called while already connected")
		return nil
	}
	c.emit(EventReconnectAttempt, 0, false)
	if err := c.reconnectStream(); err != nil {
		return err
	}
	if err := c.handshake(); err != nil {
		return err
	}
	return c.resubscribe()
}

func (c *Client) resubscribe() error {
	if len(c.subscriptions) == 0 {
		return nil
	}
	filters := make([]codec.SubscribeTopic, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		filters = append(filters, codec.SubscribeTopic{Filter: sub.Filter, QoS: sub.QoS})
	}
	return c.Subscribe(filters)
}

// unbind terminates the transport, clears the SUBACK/UNSUBACK wait queues
// and awaitPing, and drops to Disconnected. It deliberately does not clear
// the QoS1/2 publish queues: whether to retransmit them is left to the
// caller, never performed automatically.
func (c *Client) unbind() error {
	var closeErr error
	if c.conn != nil {
		closeErr = c.conn.Close()
	}
	c.awaitSuback = subscribeQueue{}
	c.awaitUnsuback = unsubscribeQueue{}
	c.awaitPing = false
	c.state = stateDisconnected
	return closeErr
}

// writePacket applies the keep-alive interval as a write deadline before
// encoding p, so a peer that stops reading fails the write instead of
// blocking c.conn forever.
func (c *Client) writePacket(p codec.Packet) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.KeepAlive)); err != nil {
		return &MqttError{Cause: err}
	}
	return codec.Encode(p, c.conn)
}

func (c *Client) flush() error {
	c.lastFlush = time.Now()
	return nil
}

func (c *Client) emit(kind EventKind, rtt time.Duration, hasLatency bool) {
	if c.opts.EventSink == nil {
		return
	}
	c.opts.EventSink(ConnectionEvent{Kind: kind, At: time.Now(), RoundTrip: rtt, HasLatency: hasLatency})
}

func toRecord(m Message) store.Record {
	return store.Record{Topic: m.Topic, Payload: m.Payload.Bytes(), Retain: m.Retain}
}
