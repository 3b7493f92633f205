// Package broadcast implements the kernel's multi-consumer fan-out for state
// change notifications. Every subscriber owns a bounded, lag-tolerant queue:
// a slow receiver loses its own oldest messages and learns the skip count,
// while producers and other receivers are never blocked by it. Broadcasting
// with zero subscribers succeeds; "no one is listening" is not a fault.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/meshkernel/logging"
)

// DefaultCapacity is the per-receiver queue depth before lag sets in.
const DefaultCapacity = 256

// ErrClosed is returned by Recv once the broadcaster has shut down and the
// receiver's queue is drained.
var ErrClosed = errors.New("broadcast channel closed")

// Kind discriminates broadcast message variants.
type Kind int

const (
	// KindPatch carries a content patch, opaque to the broadcaster.
	KindPatch Kind = iota
	// KindShutdown signals observers that the kernel is stopping.
	KindShutdown
)

// Message is either a content patch or a shutdown signal.
type Message struct {
	Kind  Kind            `json:"kind"`
	Patch json.RawMessage `json:"patch,omitempty"`
}

// NewPatch wraps an opaque patch document into a broadcast message.
func NewPatch(patch json.RawMessage) Message {
	return Message{Kind: KindPatch, Patch: patch}
}

// Shutdown returns the shutdown signal message.
func Shutdown() Message {
	return Message{Kind: KindShutdown}
}

// Broadcaster fans messages out to all active subscriptions. The live
// subscriber counter is atomic so the hot paths never contend on the
// subscription lock.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Receiver]struct{}
	closed      bool

	capacity    int
	clientCount atomic.Int64
	logger      logging.Logger
}

// Options configures a Broadcaster.
type Options struct {
	// Capacity is the per-receiver queue depth. Defaults to
	// DefaultCapacity.
	Capacity int

	// Logger receives lag diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// New constructs a broadcaster with no subscribers.
func New(optFns ...func(o *Options)) *Broadcaster {
	opts := Options{Capacity: DefaultCapacity, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	return &Broadcaster{
		subscribers: make(map[*Receiver]struct{}),
		capacity:    opts.Capacity,
		logger:      opts.Logger,
	}
}

// Subscribe registers a new receiver and increments the live client count.
// Callers must release the receiver with Close, typically via defer, so the
// count is decremented on every exit path.
func (b *Broadcaster) Subscribe() *Receiver {
	rx := &Receiver{
		broadcaster: b,
		queue:       make(chan Message, b.capacity),
		done:        make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		// A subscription after shutdown is born closed and never counts
		// as a live client.
		close(rx.done)
		b.mu.Unlock()
		return rx
	}
	b.subscribers[rx] = struct{}{}
	b.mu.Unlock()

	count := b.clientCount.Add(1)
	b.logger.Debug("Client subscribed", "client_count", count)
	return rx
}

// Broadcast fans the message out to every active receiver. A receiver whose
// queue is full has its oldest unread message dropped and its skip counter
// incremented; other receivers are unaffected. Zero subscribers is success.
func (b *Broadcaster) Broadcast(msg Message) {
	b.mu.Lock()
	receivers := make([]*Receiver, 0, len(b.subscribers))
	for rx := range b.subscribers {
		receivers = append(receivers, rx)
	}
	b.mu.Unlock()

	lagged := 0
	for _, rx := range receivers {
		if rx.offer(msg) {
			lagged++
		}
	}
	if lagged > 0 {
		b.logger.Warn("Receivers lagged during broadcast", "lagged_count", lagged)
	}
	b.logger.Debug("Broadcast sent", "receiver_count", len(receivers))
}

// ClientCount returns the number of live subscriptions.
func (b *Broadcaster) ClientCount() int {
	return int(b.clientCount.Load())
}

// Close terminates every subscription. Receivers drain their queues and then
// observe ErrClosed. Close is idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	receivers := make([]*Receiver, 0, len(b.subscribers))
	for rx := range b.subscribers {
		receivers = append(receivers, rx)
	}
	b.subscribers = make(map[*Receiver]struct{})
	b.mu.Unlock()

	b.clientCount.Add(int64(-len(receivers)))
	for _, rx := range receivers {
		close(rx.done)
	}
}

// unsubscribe removes a receiver and decrements the live count, but only if
// the receiver was still subscribed; receivers already detached by Close (or
// born closed) were never counted or were counted out there.
func (b *Broadcaster) unsubscribe(rx *Receiver) {
	b.mu.Lock()
	_, present := b.subscribers[rx]
	delete(b.subscribers, rx)
	b.mu.Unlock()
	if !present {
		return
	}

	count := b.clientCount.Add(-1)
	b.logger.Debug("Client unsubscribed", "client_count", count)
}

// Receiver is one subscription's view of the broadcast stream.
type Receiver struct {
	broadcaster *Broadcaster
	queue       chan Message
	done        chan struct{}

	mu      sync.Mutex
	skipped uint64

	closeOnce sync.Once
}

// offer enqueues without blocking, dropping this receiver's oldest message
// when the queue is full. Reports whether the receiver lagged.
func (r *Receiver) offer(msg Message) bool {
	select {
	case r.queue <- msg:
		return false
	default:
	}

	// Queue full: drop the oldest retained message to make room. The
	// drop and the retry race other producers, so loop until one lands.
	lagged := false
	for {
		select {
		case <-r.queue:
			r.mu.Lock()
			r.skipped++
			r.mu.Unlock()
			lagged = true
		default:
		}
		select {
		case r.queue <- msg:
			return lagged
		default:
		}
	}
}

// Recv blocks until a message arrives, ctx is done, or the broadcaster is
// closed and the queue drained. Lag is non-fatal: after messages were
// dropped, Recv keeps delivering from the newest retained message; the
// number skipped so far is available via Skipped.
func (r *Receiver) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-r.queue:
		return msg, nil
	default:
	}
	select {
	case msg := <-r.queue:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-r.done:
		// Drain anything enqueued before the close.
		select {
		case msg := <-r.queue:
			return msg, nil
		default:
			return Message{}, ErrClosed
		}
	}
}

// Skipped returns how many messages this receiver has lost to lag.
func (r *Receiver) Skipped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// Close releases the subscription, decrementing the live client count
// exactly once regardless of how many times it is called.
func (r *Receiver) Close() {
	r.closeOnce.Do(func() {
		r.broadcaster.unsubscribe(r)
	})
}
