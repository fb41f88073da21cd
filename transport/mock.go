package transport

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// mockAddr is the hardcoded address every Mock reports for both ends of the
// pipe; nothing about a Mock's identity is meaningful, only its behavior.
type mockAddr struct{}

func (mockAddr) Network() string { return "tcp" }
func (mockAddr) String() string  { return "0.0.0.0" }

// timeoutError satisfies net.Error with Timeout() true, what Read/Write
// return when a deadline elapses before data is available.
type timeoutError struct{}

func (timeoutError) Error() string   { return "transport: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// Mock is an in-memory duplex Stream for session-engine tests: a local side
// driven by Read/Write (what the engine under test uses) and a remote side
// driven by RemoteRead/RemoteWrite (what the test harness uses to play the
// part of the broker). Not safe to Close concurrently with an in-flight Read
// from more than one goroutine.
type Mock struct {
	mu   sync.Mutex
	cond *sync.Cond

	toLocal  bytes.Buffer
	toRemote bytes.Buffer

	closed bool

	readDeadline  time.Time
	writeDeadline time.Time
}

// NewMock creates an unconnected pair of in-memory pipes with no data
// pending on either side.
func NewMock() *Mock {
	m := &Mock{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Read blocks until the remote side has written data, the deadline set by
// SetReadDeadline elapses, or the Mock is closed (io.EOF).
func (m *Mock) Read(p []byte) (int, error) {
	return m.read(p, &m.toLocal, func() time.Time { return m.readDeadline })
}

// RemoteRead is the test harness's counterpart to Read: it observes what
// the engine under test wrote via Write. It has no deadline of its own.
func (m *Mock) RemoteRead(p []byte) (int, error) {
	return m.read(p, &m.toRemote, func() time.Time { return time.Time{} })
}

func (m *Mock) read(p []byte, buf *bytes.Buffer, deadline func() time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for buf.Len() == 0 && !m.closed {
		dl := deadline()
		if dl.IsZero() {
			m.cond.Wait()
			continue
		}
		remaining := time.Until(dl)
		if remaining <= 0 {
			return 0, timeoutError{}
		}
		timer := time.AfterFunc(remaining, func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		m.cond.Wait()
		timer.Stop()
		if buf.Len() == 0 && !m.closed && !time.Now().Before(dl) {
			return 0, timeoutError{}
		}
	}

	if buf.Len() == 0 && m.closed {
		return 0, io.EOF
	}
	return buf.Read(p)
}

// Write hands p to the remote side, readable via RemoteRead.
func (m *Mock) Write(p []byte) (int, error) {
	return m.write(p, &m.toRemote)
}

// RemoteWrite is the test harness's counterpart to Write: it plays data the
// engine under test will observe via Read.
func (m *Mock) RemoteWrite(p []byte) (int, error) {
	return m.write(p, &m.toLocal)
}

func (m *Mock) write(p []byte, buf *bytes.Buffer) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := buf.Write(p)
	m.cond.Broadcast()
	return n, err
}

// SetReadDeadline sets the absolute deadline a pending or future Read gives
// up at. A zero Time disables the deadline (the default).
func (m *Mock) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	m.readDeadline = t
	m.cond.Broadcast()
	m.mu.Unlock()
	return nil
}

// SetWriteDeadline is accepted for interface conformance; Write never
// blocks on this Mock so it has nothing to enforce.
func (m *Mock) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	m.writeDeadline = t
	m.mu.Unlock()
	return nil
}

// Close unblocks any pending Read/RemoteRead with io.EOF and rejects
// further writes.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
	return nil
}

func (m *Mock) RemoteAddr() net.Addr { return mockAddr{} }
func (m *Mock) LocalAddr() net.Addr  { return mockAddr{} }
