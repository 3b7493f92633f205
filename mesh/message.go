package mesh

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// reply is the value delivered into a message's one-shot reply slot.
type reply struct {
	payload Payload
	err     error
}

// Message is one in-flight mesh call: a target component id, an opaque method
// name interpreted by the target, a Payload argument and a one-shot reply
// slot. A message is created per call, owned by the router until handed to
// the target's inbound channel, then owned by the target until it replies.
//
// Exactly one reply is ever delivered per message: the slot is a buffered
// channel of capacity one guarded by a sync.Once, so a second Reply or
// ReplyError is a no-op returning false rather than a double send. The slot
// is consumed by at most one reader (Await).
type Message struct {
	ID      string
	Target  string
	Method  string
	Payload Payload

	replyCh chan reply
	once    sync.Once
}

// NewMessage constructs a message bound to a fresh reply slot.
func NewMessage(target, method string, payload Payload) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Target:  target,
		Method:  method,
		Payload: payload,
		replyCh: make(chan reply, 1),
	}
}

// Reply delivers a successful result into the reply slot. It reports whether
// this call won the one-shot race; a false return means a reply was already
// delivered.
func (m *Message) Reply(payload Payload) bool {
	sent := false
	m.once.Do(func() {
		m.replyCh <- reply{payload: payload}
		sent = true
	})
	return sent
}

// ReplyError delivers a failure into the reply slot. Like Reply it reports
// whether this call was the one that consumed the one-shot slot.
func (m *Message) ReplyError(err error) bool {
	sent := false
	m.once.Do(func() {
		m.replyCh <- reply{err: err}
		sent = true
	})
	return sent
}

// Await blocks until the reply arrives or ctx is done. Cancelling the wait
// does not retract a message already delivered to the target; a late reply
// into the now-unread slot is simply discarded (the slot is buffered, so the
// target never blocks on it).
func (m *Message) Await(ctx context.Context) (Payload, error) {
	select {
	case r := <-m.replyCh:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
