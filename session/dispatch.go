package session

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/solvik/mqttc/codec"
)

// Await blocks until either an application message is ready for the user,
// or every queue has drained and the connection is idle, returning
// (nil, nil) in the latter case. A keepalive timeout triggers a PING if
// none is outstanding, or drops the connection if one already was.
func (c *Client) Await() (*Message, error) {
	for {
		msg, err := c.accept()
		if err != nil {
			if errors.Is(err, ErrTimeout) && c.state == stateConnected {
				if !c.awaitPing {
					if pingErr := c.Ping(); pingErr != nil {
						return nil, pingErr
					}
					continue
				}
				c.unbind()
				return nil, ErrDisconnected
			}
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		if c.normalized() {
			return nil, nil
		}
	}
}

// accept is the single-step inner loop: it reads exactly one packet
// (respecting the keepalive deadline), dispatches it, and returns any
// message produced. A recoverable connection loss is retried internally
// per the configured ReconnectPolicy before the caller ever sees it.
func (c *Client) accept() (*Message, error) {
	for {
		if c.state == stateDisconnected {
			if !c.tryReconnect() {
				return nil, ErrDisconnected
			}
			continue
		}

		elapsed := time.Since(c.lastFlush)
		if elapsed >= c.opts.KeepAlive {
			return nil, ErrTimeout
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.KeepAlive - elapsed)); err != nil {
			return nil, &MqttError{Cause: err}
		}

		pkt, err := codec.Decode(c.conn)
		if err != nil {
			if isTimeout(err) {
				return nil, ErrTimeout
			}
			if isConnectionLoss(err) {
				c.unbind()
				if c.tryReconnect() {
					continue
				}
				if _, retry := c.opts.Reconnect.shouldReconnect(); !retry {
					return nil, ErrDisconnected
				}
				return nil, ErrConnectionAbort
			}
			return nil, &MqttError{Cause: err}
		}

		return c.parsePacket(pkt)
	}
}

// tryReconnect honors the configured ReconnectPolicy: ForeverDisconnect
// never retries; ReconnectAfter sleeps then attempts one reconnect,
// reporting whether it succeeded.
func (c *Client) tryReconnect() bool {
	wait, ok := c.opts.Reconnect.shouldReconnect()
	if !ok {
		return false
	}
	if wait > 0 {
		time.Sleep(wait)
	}
	if err := c.Reconnect(); err != nil {
		c.log.WithError(err).Warn("reconnect attempt failed")
		return false
	}
	return true
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// isConnectionLoss reports whether err represents the transport going away
// rather than a malformed packet. Go does not expose the same OS-level
// error-kind taxonomy some platforms do as distinct sentinel types, so this
// collapses EOF/closed-pipe conditions to "connection loss" and lets every
// other codec error surface to the caller unchanged.
func isConnectionLoss(err error) bool {
	return errors.Is(err, codec.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}

// normalized reports whether the engine has nothing left to do: connected,
// no ping outstanding, and every queue empty.
func (c *Client) normalized() bool {
	return c.state == stateConnected &&
		!c.awaitPing &&
		c.incomingPub.len() == 0 &&
		c.incomingRec.len() == 0 &&
		c.incomingRel.len() == 0 &&
		c.outgoingAck.len() == 0 &&
		c.outgoingRec.len() == 0 &&
		c.outgoingComp.len() == 0 &&
		c.awaitSuback.len() == 0 &&
		c.awaitUnsuback.len() == 0
}

// parsePacket dispatches one decoded packet according to the current state.
func (c *Client) parsePacket(pkt codec.Packet) (*Message, error) {
	if c.state == stateHandshake {
		return c.parseHandshakePacket(pkt)
	}
	return c.parseConnectedPacket(pkt)
}

func (c *Client) parseHandshakePacket(pkt codec.Packet) (*Message, error) {
	connack, ok := pkt.(codec.Connack)
	if !ok {
		return nil, ErrHandshakeFailed
	}
	if connack.ReturnCode != codec.Accepted {
		return nil, &ConnectionRefusedError{Code: connack.ReturnCode}
	}
	c.state = stateConnected
	c.sessionPresent = connack.SessionPresent
	c.emit(EventConnack, 0, false)
	return nil, nil
}

func (c *Client) parseConnectedPacket(pkt codec.Packet) (*Message, error) {
	switch v := pkt.(type) {
	case codec.Connack:
		return nil, ErrAlreadyConnected

	case codec.Publish:
		return c.handlePublish(v)

	case codec.Puback:
		head, ok := c.outgoingAck.front()
		if !ok || head.Pid != v.Pid {
			return nil, unhandled("Puback", v.Pid)
		}
		c.outgoingAck.popFront()
		return nil, nil

	case codec.Pubrec:
		head, ok := c.outgoingRec.front()
		if !ok || head.Pid != v.Pid {
			return nil, unhandled("Pubrec", v.Pid)
		}
		c.outgoingRec.popFront()
		if err := c.writePacket(codec.Pubrel{Pid: v.Pid}); err != nil {
			return nil, err
		}
		if err := c.flush(); err != nil {
			return nil, err
		}
		c.outgoingComp.push(v.Pid)
		if c.opts.OutgoingStore != nil {
			if err := c.opts.OutgoingStore.Delete(context.Background(), uint16(v.Pid)); err != nil {
				return nil, &StorageError{Cause: err}
			}
		}
		return nil, nil

	case codec.Pubrel:
		head, ok := c.incomingRec.front()
		if !ok || head.Pid != v.Pid {
			return nil, ErrProtocolViolation
		}
		c.incomingRec.popFront()
		if c.opts.IncomingStore == nil {
			return nil, ErrIncomingStorageAbsent
		}
		rec, err := c.opts.IncomingStore.Get(context.Background(), uint16(v.Pid))
		if err != nil {
			return nil, &StorageError{Cause: err}
		}
		c.incomingRel.push(v.Pid)
		msg := Message{Topic: rec.Topic, QoS: codec.ExactlyOnce, Retain: rec.Retain, Pid: v.Pid, Payload: NewPayload(rec.Payload)}
		c.emit(EventMessageDelivered, 0, false)
		return &msg, nil

	case codec.Pubcomp:
		head, ok := c.outgoingComp.front()
		if !ok || head != v.Pid {
			return nil, unhandled("Pubcomp", v.Pid)
		}
		c.outgoingComp.popFront()
		return nil, nil

	case codec.Suback:
		req, ok := c.awaitSuback.front()
		if !ok || req.Pid != v.Pid || len(req.Topics) != len(v.ReturnCodes) {
			return nil, ErrProtocolViolation
		}
		c.awaitSuback.popFront()
		for i, rc := range v.ReturnCodes {
			if rc.Failure {
				continue
			}
			filter := req.Topics[i].Filter
			c.subscriptions[filter] = Subscription{Pid: v.Pid, Filter: filter, QoS: rc.Granted}
		}
		return nil, nil

	case codec.Unsuback:
		req, ok := c.awaitUnsuback.front()
		if !ok || req.Pid != v.Pid {
			return nil, unhandled("Unsuback", v.Pid)
		}
		c.awaitUnsuback.popFront()
		for _, filter := range req.Topics {
			delete(c.subscriptions, filter)
		}
		return nil, nil

	case codec.Pingresp:
		c.awaitPing = false
		rtt := time.Since(c.pingSentAt)
		c.emit(EventPingReceived, rtt, true)
		return nil, nil

	default:
		return nil, ErrUnrecognizedPacket
	}
}

func (c *Client) handlePublish(p codec.Publish) (*Message, error) {
	msg := Message{Topic: p.Topic, QoS: p.QoS, Retain: p.Retain, Pid: p.Pid, Payload: NewPayload(p.Payload)}

	switch p.QoS {
	case codec.AtMostOnce:
		c.emit(EventMessageDelivered, 0, false)
		return &msg, nil

	case codec.AtLeastOnce:
		if err := c.writePacket(codec.Puback{Pid: p.Pid}); err != nil {
			return nil, err
		}
		if err := c.flush(); err != nil {
			return nil, err
		}
		c.emit(EventMessageDelivered, 0, false)
		return &msg, nil

	case codec.ExactlyOnce:
		c.incomingRec.push(msg)
		if c.opts.IncomingStore == nil {
			return nil, ErrIncomingStorageAbsent
		}
		if err := c.opts.IncomingStore.Put(context.Background(), uint16(p.Pid), toRecord(msg)); err != nil {
			return nil, &StorageError{Cause: err}
		}
		if err := c.writePacket(codec.Pubrec{Pid: p.Pid}); err != nil {
			return nil, err
		}
		if err := c.flush(); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, codec.ErrUnsupportedQualityOfService
	}
}
