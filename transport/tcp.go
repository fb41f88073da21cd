package transport

import (
	"net"
	"time"
)

// DialTCP opens a plain TCP connection to address. The returned Stream also
// satisfies net.Conn, so a *tls.Conn wrapping it (or dialed directly via
// tls.Dial) is itself a valid Stream without any adapter.
func DialTCP(address string, timeout time.Duration) (Stream, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
