package session

import "github.com/solvik/mqttc/codec"

// pidAllocator hands out packet identifiers for QoS1/2 PUBLISH, SUBSCRIBE,
// and UNSUBSCRIBE, as a monotonic counter rather than a bitset of allocated
// pids: the engine's FIFO head-matching discipline (see queues.go) is what
// actually prevents a pid from being reused while still outstanding, so
// tracking "is this pid currently allocated" separately is unnecessary.
type pidAllocator struct {
	last codec.PacketIdentifier
}

// next returns the next packet identifier, skipping 0 and wrapping
// 0xFFFF back to 1.
func (a *pidAllocator) next() codec.PacketIdentifier {
	a.last = a.last.Next()
	return a.last
}
