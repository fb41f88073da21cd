// Package transport provides the byte-stream collaborator the session
// engine drives the MQTT wire protocol over: plain TCP, anything satisfying
// *tls.Conn, or an in-memory Mock for tests.
package transport

import (
	"io"
	"net"
	"time"
)

// Stream is a duplex byte stream with deadline-based read/write timeouts,
// matching the shape of Go's net.Conn. The session engine recomputes an
// absolute deadline from the keep-alive interval before every read, so
// deadlines rather than durations are the natural fit here.
type Stream interface {
	io.Reader
	io.Writer
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
	Close() error
	RemoteAddr() net.Addr
}
