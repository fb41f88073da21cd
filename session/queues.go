package session

import "github.com/solvik/mqttc/codec"

// messageQueue is an insertion-ordered FIFO of Messages, used for the
// incoming_pub/incoming_rec/outgoing_ack/outgoing_rec queues. Acks are
// matched against the head per spec: this relies on the broker preserving
// per-QoS-class order, which MQTT itself mandates.
type messageQueue struct {
	items []Message
}

func (q *messageQueue) push(m Message) { q.items = append(q.items, m) }

func (q *messageQueue) front() (Message, bool) {
	if len(q.items) == 0 {
		return Message{}, false
	}
	return q.items[0], true
}

func (q *messageQueue) popFront() (Message, bool) {
	m, ok := q.front()
	if ok {
		q.items = q.items[1:]
	}
	return m, ok
}

func (q *messageQueue) len() int { return len(q.items) }

// pidQueue is the same FIFO shape for queues that only need to remember a
// packet identifier: outgoing_comp, incoming_rel.
type pidQueue struct {
	items []codec.PacketIdentifier
}

func (q *pidQueue) push(pid codec.PacketIdentifier) { q.items = append(q.items, pid) }

func (q *pidQueue) front() (codec.PacketIdentifier, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0], true
}

func (q *pidQueue) popFront() (codec.PacketIdentifier, bool) {
	pid, ok := q.front()
	if ok {
		q.items = q.items[1:]
	}
	return pid, ok
}

// back/popBack support Complete(pid): a completed QoS2 receive must match
// the most-recent (back) entry of incomingRel, not the head.
func (q *pidQueue) back() (codec.PacketIdentifier, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[len(q.items)-1], true
}

func (q *pidQueue) popBack() (codec.PacketIdentifier, bool) {
	pid, ok := q.back()
	if ok {
		q.items = q.items[:len(q.items)-1]
	}
	return pid, ok
}

func (q *pidQueue) len() int { return len(q.items) }

// subscribeQueue holds pending SUBSCRIBE requests awaiting their SUBACK, so
// the dispatch logic can check the topic-count matches the return-code
// count.
type subscribeQueue struct {
	items []codec.Subscribe
}

func (q *subscribeQueue) push(s codec.Subscribe) { q.items = append(q.items, s) }

func (q *subscribeQueue) front() (codec.Subscribe, bool) {
	if len(q.items) == 0 {
		return codec.Subscribe{}, false
	}
	return q.items[0], true
}

func (q *subscribeQueue) popFront() (codec.Subscribe, bool) {
	if len(q.items) == 0 {
		return codec.Subscribe{}, false
	}
	s := q.items[0]
	q.items = q.items[1:]
	return s, true
}

func (q *subscribeQueue) len() int { return len(q.items) }

// unsubscribeQueue mirrors subscribeQueue for pending UNSUBSCRIBEs.
type unsubscribeQueue struct {
	items []codec.Unsubscribe
}

func (q *unsubscribeQueue) push(u codec.Unsubscribe) { q.items = append(q.items, u) }

func (q *unsubscribeQueue) front() (codec.Unsubscribe, bool) {
	if len(q.items) == 0 {
		return codec.Unsubscribe{}, false
	}
	return q.items[0], true
}

func (q *unsubscribeQueue) popFront() (codec.Unsubscribe, bool) {
	if len(q.items) == 0 {
		return codec.Unsubscribe{}, false
	}
	u := q.items[0]
	q.items = q.items[1:]
	return u, true
}

func (q *unsubscribeQueue) len() int { return len(q.items) }
