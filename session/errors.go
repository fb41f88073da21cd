package session

import (
	"errors"
	"fmt"

	"github.com/solvik/mqttc/codec"
)

// Session errors, the engine's own taxonomy layered on top of codec errors.
var (
	ErrAlreadyConnected      = errors.New("session: already connected")
	ErrUnsupportedFeature    = errors.New("session: unsupported feature")
	ErrUnrecognizedPacket    = errors.New("session: unrecognized packet")
	ErrConnectionAbort       = errors.New("session: connection abort")
	ErrIncomingStorageAbsent = errors.New("session: incoming storage absent")
	ErrOutgoingStorageAbsent = errors.New("session: outgoing storage absent")
	ErrHandshakeFailed       = errors.New("session: handshake failed")
	ErrProtocolViolation     = errors.New("session: protocol violation")
	ErrDisconnected          = errors.New("session: disconnected")
	ErrTimeout               = errors.New("session: timeout")
)

// ConnectionRefusedError wraps the CONNACK return code that refused a
// connect attempt.
type ConnectionRefusedError struct {
	Code codec.ConnectReturnCode
}

func (e *ConnectionRefusedError) Error() string {
	return fmt.Sprintf("session: connection refused: %s", e.Code)
}

// PacketIdentifierError reports an ack that did not match what the engine
// expected at the head of the corresponding queue.
type PacketIdentifierError struct {
	Kind string // "Puback", "Pubrec", "Pubcomp", or "Unsuback"
	Pid  codec.PacketIdentifier
}

func (e *PacketIdentifierError) Error() string {
	return fmt.Sprintf("session: unhandled %s for pid %d", e.Kind, e.Pid)
}

func unhandled(kind string, pid codec.PacketIdentifier) error {
	return &PacketIdentifierError{Kind: kind, Pid: pid}
}

// StorageError wraps a failure returned by a store.Store collaborator.
type StorageError struct {
	Cause error
}

func (e *StorageError) Error() string { return fmt.Sprintf("session: storage: %v", e.Cause) }
func (e *StorageError) Unwrap() error { return e.Cause }

// MqttError wraps a codec-layer error that escaped to the caller unchanged.
type MqttError struct {
	Cause error
}

func (e *MqttError) Error() string { return fmt.Sprintf("session: mqtt: %v", e.Cause) }
func (e *MqttError) Unwrap() error { return e.Cause }
