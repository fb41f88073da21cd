package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solvik/mqttc/codec"
	"github.com/solvik/mqttc/store"
	"github.com/solvik/mqttc/transport"
)

// remoteSide adapts a transport.Mock's remote-facing methods to io.Reader/
// io.Writer so test code can decode/encode packets through the codec
// package exactly as the broker side of the wire would.
type remoteSide struct{ m *transport.Mock }

func (r remoteSide) Read(p []byte) (int, error)  { return r.m.RemoteRead(p) }
func (r remoteSide) Write(p []byte) (int, error) { return r.m.RemoteWrite(p) }

func acceptedConnack(sessionPresent bool) codec.Connack {
	return codec.Connack{SessionPresent: sessionPresent, ReturnCode: codec.Accepted}
}

// dialAcceptedMock returns a mock transport with a CONNACK(Accepted) queued
// on the remote side, ready for Connect to read during its handshake.
func dialAcceptedMock(t *testing.T, sessionPresent bool) (*transport.Mock, remoteSide) {
	t.Helper()
	m := transport.NewMock()
	remote := remoteSide{m: m}
	if err := codec.Encode(acceptedConnack(sessionPresent), remote); err != nil {
		t.Fatalf("encode connack: %v", err)
	}
	return m, remote
}

// connectViaMock connects a Client over a mock transport and consumes the
// CONNECT it sent, so a test's next codec.Decode(remote) sees the packet the
// test itself provoked.
func connectViaMock(t *testing.T, sessionPresent bool, opts ...ClientOption) (*Client, *transport.Mock, remoteSide) {
	t.Helper()
	m, remote := dialAcceptedMock(t, sessionPresent)
	allOpts := append([]ClientOption{WithStream(m), WithClientID("test"), WithKeepAlive(2 * time.Second)}, opts...)
	c, err := Connect("unused", allOpts...)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	pkt, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode connect: %v", err)
	}
	if _, ok := pkt.(codec.Connect); !ok {
		t.Fatalf("got %T, want codec.Connect", pkt)
	}
	return c, m, remote
}

func TestConnectHandshakeAccepted(t *testing.T) {
	m, remote := dialAcceptedMock(t, true)
	c, err := Connect("unused", WithStream(m), WithClientID("test"), WithKeepAlive(2*time.Second))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	pkt, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode connect as seen by broker: %v", err)
	}
	connect, ok := pkt.(codec.Connect)
	if !ok {
		t.Fatalf("got %T, want codec.Connect", pkt)
	}
	if connect.ClientID != "test" || connect.Protocol != codec.MQTT {
		t.Fatalf("unexpected connect: %+v", connect)
	}
	if !c.SessionPresent() {
		t.Fatalf("SessionPresent() = false, want true")
	}
}

func TestConnectRefused(t *testing.T) {
	m := transport.NewMock()
	remote := remoteSide{m: m}
	if err := codec.Encode(codec.Connack{ReturnCode: codec.IdentifierRejected}, remote); err != nil {
		t.Fatalf("encode connack: %v", err)
	}

	_, err := Connect("unused", WithStream(m), WithClientID("test"))
	var refused *ConnectionRefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("got %v, want *ConnectionRefusedError", err)
	}
	if refused.Code != codec.IdentifierRejected {
		t.Fatalf("got code %v, want IdentifierRejected", refused.Code)
	}
}

func TestConnectHandshakeFailedOnUnexpectedPacket(t *testing.T) {
	m := transport.NewMock()
	remote := remoteSide{m: m}
	if err := codec.Encode(codec.Pingresp{}, remote); err != nil {
		t.Fatalf("encode pingresp: %v", err)
	}

	_, err := Connect("unused", WithStream(m), WithClientID("test"))
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("got %v, want ErrHandshakeFailed", err)
	}
}

func TestPublishQoS1RoundTrip(t *testing.T) {
	c, _, remote := connectViaMock(t, false)

	if err := c.Publish("a/b", []byte("hi"), codec.AtLeastOnce, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if c.outgoingAck.len() != 1 {
		t.Fatalf("outgoingAck.len() = %d, want 1", c.outgoingAck.len())
	}

	pkt, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode publish: %v", err)
	}
	pub, ok := pkt.(codec.Publish)
	if !ok {
		t.Fatalf("got %T, want codec.Publish", pkt)
	}
	if pub.QoS != codec.AtLeastOnce || pub.Topic != "a/b" || !bytes.Equal(pub.Payload, []byte("hi")) {
		t.Fatalf("unexpected publish: %+v", pub)
	}

	if err := codec.Encode(codec.Puback{Pid: pub.Pid}, remote); err != nil {
		t.Fatalf("encode puback: %v", err)
	}

	msg, err := c.Await()
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if msg != nil {
		t.Fatalf("Await returned %+v, want nil (normalized)", msg)
	}
	if c.outgoingAck.len() != 0 {
		t.Fatalf("outgoingAck.len() = %d, want 0 after matching PUBACK", c.outgoingAck.len())
	}
}

func TestPubackMismatchIsUnhandled(t *testing.T) {
	c, _, remote := connectViaMock(t, false)

	if err := c.Publish("a/b", nil, codec.AtLeastOnce, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := codec.Decode(remote); err != nil {
		t.Fatalf("decode publish: %v", err)
	}

	if err := codec.Encode(codec.Puback{Pid: 9999}, remote); err != nil {
		t.Fatalf("encode puback: %v", err)
	}

	_, err := c.Await()
	var pidErr *PacketIdentifierError
	if !errors.As(err, &pidErr) || pidErr.Kind != "Puback" {
		t.Fatalf("got %v, want PacketIdentifierError{Puback}", err)
	}
}

func TestPublishQoS2FullSendCycle(t *testing.T) {
	outgoing := store.NewMemory()
	c, _, remote := connectViaMock(t, false, WithOutgoingStore(outgoing))

	if err := c.Publish("a/b", []byte("hi"), codec.ExactlyOnce, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	pkt, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode publish: %v", err)
	}
	pub := pkt.(codec.Publish)

	if err := codec.Encode(codec.Pubrec{Pid: pub.Pid}, remote); err != nil {
		t.Fatalf("encode pubrec: %v", err)
	}
	// accept, not Await: outgoingComp is still pending after PUBREC, so
	// Await would keep reading until the keepalive dropped the connection.
	if _, err := c.accept(); err != nil {
		t.Fatalf("accept after PUBREC: %v", err)
	}

	rel, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode pubrel: %v", err)
	}
	if _, ok := rel.(codec.Pubrel); !ok {
		t.Fatalf("got %T, want codec.Pubrel", rel)
	}
	if c.outgoingComp.len() != 1 {
		t.Fatalf("outgoingComp.len() = %d, want 1", c.outgoingComp.len())
	}

	if err := codec.Encode(codec.Pubcomp{Pid: pub.Pid}, remote); err != nil {
		t.Fatalf("encode pubcomp: %v", err)
	}
	if _, err := c.Await(); err != nil {
		t.Fatalf("Await after PUBCOMP: %v", err)
	}

	if c.outgoingRec.len() != 0 || c.outgoingComp.len() != 0 {
		t.Fatalf("queues not drained: outgoingRec=%d outgoingComp=%d", c.outgoingRec.len(), c.outgoingComp.len())
	}
	if _, err := outgoing.Get(context.Background(), uint16(pub.Pid)); err == nil {
		t.Fatalf("expected outgoing store entry to be deleted")
	}
}

func TestReceiveQoS2FullCycle(t *testing.T) {
	incoming := store.NewMemory()
	c, _, remote := connectViaMock(t, false, WithIncomingStore(incoming))

	if err := codec.Encode(codec.Publish{QoS: codec.ExactlyOnce, Topic: "a/b", Pid: 42, Payload: []byte("hi")}, remote); err != nil {
		t.Fatalf("encode publish: %v", err)
	}
	// accept, not Await: incomingRec is still pending until PUBREL arrives.
	if _, err := c.accept(); err != nil {
		t.Fatalf("accept after publish: %v", err)
	}

	rec, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode pubrec: %v", err)
	}
	pubrec, ok := rec.(codec.Pubrec)
	if !ok || pubrec.Pid != 42 {
		t.Fatalf("got %+v, want Pubrec{Pid:42}", rec)
	}

	if err := codec.Encode(codec.Pubrel{Pid: 42}, remote); err != nil {
		t.Fatalf("encode pubrel: %v", err)
	}
	msg, err := c.Await()
	if err != nil {
		t.Fatalf("Await after pubrel: %v", err)
	}
	if msg == nil || msg.Topic != "a/b" {
		t.Fatalf("got %+v, want delivered message a/b", msg)
	}

	if err := c.Complete(42); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	comp, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode pubcomp: %v", err)
	}
	if _, ok := comp.(codec.Pubcomp); !ok {
		t.Fatalf("got %T, want codec.Pubcomp", comp)
	}
	if c.incomingRel.len() != 0 {
		t.Fatalf("incomingRel.len() = %d, want 0", c.incomingRel.len())
	}
	if _, err := incoming.Get(context.Background(), 42); err == nil {
		t.Fatalf("expected incoming store entry to be deleted")
	}
}

func TestCompleteMismatchIsProtocolViolation(t *testing.T) {
	c, _, _ := connectViaMock(t, false)
	err := c.Complete(7)
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("got %v, want ErrProtocolViolation", err)
	}
}

func TestSubscribeSubackInstallsSubscriptions(t *testing.T) {
	c, _, remote := connectViaMock(t, false)

	err := c.Subscribe([]codec.SubscribeTopic{
		{Filter: "a/+", QoS: codec.AtMostOnce},
		{Filter: "#", QoS: codec.AtLeastOnce},
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	pkt, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode subscribe: %v", err)
	}
	sub := pkt.(codec.Subscribe)

	suback := codec.Suback{Pid: sub.Pid, ReturnCodes: []codec.SubscribeReturnCode{
		codec.SuccessReturnCode(codec.AtMostOnce),
		codec.FailureReturnCode(),
	}}
	if err := codec.Encode(suback, remote); err != nil {
		t.Fatalf("encode suback: %v", err)
	}

	if _, err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if _, ok := c.subscriptions["a/+"]; !ok {
		t.Fatalf("expected subscription for a/+")
	}
	if _, ok := c.subscriptions["#"]; ok {
		t.Fatalf("did not expect subscription for # (SUBACK said Failure)")
	}
}

func TestSubackArityMismatchIsProtocolViolation(t *testing.T) {
	c, _, remote := connectViaMock(t, false)

	if err := c.Subscribe([]codec.SubscribeTopic{{Filter: "a/b", QoS: codec.AtMostOnce}}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	pkt, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode subscribe: %v", err)
	}
	sub := pkt.(codec.Subscribe)

	suback := codec.Suback{Pid: sub.Pid, ReturnCodes: []codec.SubscribeReturnCode{
		codec.SuccessReturnCode(codec.AtMostOnce),
		codec.SuccessReturnCode(codec.AtMostOnce),
	}}
	if err := codec.Encode(suback, remote); err != nil {
		t.Fatalf("encode suback: %v", err)
	}

	_, err = c.Await()
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("got %v, want ErrProtocolViolation", err)
	}
}

func TestPingOnKeepaliveTimeout(t *testing.T) {
	// The broker never answers: the first keepalive timeout sends one
	// PINGREQ with awaitPing set, the second drops the connection.
	var c *Client
	pings := 0
	awaitPingWhenSent := false
	sink := func(ev ConnectionEvent) {
		if ev.Kind == EventPingSent {
			pings++
			awaitPingWhenSent = c.awaitPing
		}
	}
	c, _, remote := connectViaMock(t, false, WithKeepAlive(30*time.Millisecond), WithEventSink(sink))

	msg, err := c.Await()
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Await: got %v, want ErrDisconnected", err)
	}
	if msg != nil {
		t.Fatalf("got %+v, want nil", msg)
	}
	if pings != 1 || !awaitPingWhenSent {
		t.Fatalf("pings=%d awaitPing=%v, want one ping sent with awaitPing set", pings, awaitPingWhenSent)
	}
	if c.state != stateDisconnected {
		t.Fatalf("state = %v, want stateDisconnected after the second timeout", c.state)
	}

	pkt, err := codec.Decode(remote)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := pkt.(codec.Pingreq); !ok {
		t.Fatalf("got %T, want codec.Pingreq", pkt)
	}
}
