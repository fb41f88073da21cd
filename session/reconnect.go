package session

import "time"

// ReconnectPolicy governs what accept/await do when the transport is lost.
type ReconnectPolicy interface {
	// shouldReconnect reports whether the engine should attempt to
	// reconnect, and if so, how long to wait first.
	shouldReconnect() (wait time.Duration, ok bool)
}

// ForeverDisconnect never reconnects automatically; a lost connection
// surfaces ErrDisconnected to the caller.
type ForeverDisconnect struct{}

func (ForeverDisconnect) shouldReconnect() (time.Duration, bool) { return 0, false }

// ReconnectAfter reconnects automatically after sleeping Wait.
type ReconnectAfter struct {
	Wait time.Duration
}

func (r ReconnectAfter) shouldReconnect() (time.Duration, bool) { return r.Wait, true }
