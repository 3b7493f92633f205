package mesh

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/meshkernel/logging"
)

// RemoteDispatcher forwards a call to another kernel node. The concrete wire
// encoding and transport are external collaborators; the router only consumes
// this interface.
type RemoteDispatcher interface {
	DispatchRemote(ctx context.Context, node NodeInfo, target, method string, payload Payload) (Payload, error)
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// Remote handles cluster forwarding when a target is not registered
	// locally. Nil means single-node mode: local misses fail immediately.
	Remote RemoteDispatcher

	// Membership locates nodes serving a capability. Required together
	// with Remote for distributed dispatch.
	Membership *Membership

	// MaxInFlight bounds the number of dispatches executing concurrently.
	// Zero means unlimited.
	MaxInFlight int64

	// Logger receives routing diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Router maintains the local dispatch table (component id -> inbound channel)
// and, in distributed mode, forwards local misses through the remote
// dispatcher. The table is guarded by a read-mostly lock: many concurrent
// dispatchers, rare registration writes. The lock is never held across a
// channel send or reply wait; Dispatch copies the channel handle out first.
type Router struct {
	mu     sync.RWMutex
	routes map[string]chan<- *Message

	remote     RemoteDispatcher
	membership *Membership
	sem        *semaphore.Weighted
	logger     logging.Logger
}

// NewRouter constructs a router with optional remote forwarding and dispatch
// limiting.
func NewRouter(optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	r := &Router{
		routes:     make(map[string]chan<- *Message),
		remote:     opts.Remote,
		membership: opts.Membership,
		logger:     opts.Logger,
	}
	if opts.MaxInFlight > 0 {
		r.sem = semaphore.NewWeighted(opts.MaxInFlight)
	}
	return r
}

// Register installs or overwrites the dispatch entry for a component id.
// Last registration wins; re-registering is not an error.
func (r *Router) Register(id string, inbound chan<- *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[id] = inbound
	r.logger.Debug("Component registered", "component_id", id)
}

// Deregister removes a component's dispatch entry. Subsequent local
// dispatches to the id fail with ErrTargetNotFound (or go remote).
func (r *Router) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, id)
}

// Registered reports whether a component id has a local dispatch entry.
func (r *Router) Registered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[id]
	return ok
}

// Dispatch routes one call and waits for its reply. Messages from the same
// caller to the same target are delivered in send order; no ordering is
// promised across callers. The router applies no timeout of its own - the
// caller's ctx is the only deadline mechanism.
func (r *Router) Dispatch(ctx context.Context, target, method string, payload Payload) (Payload, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer r.sem.Release(1)
	}

	r.mu.RLock()
	inbound, ok := r.routes[target]
	r.mu.RUnlock()

	if !ok {
		return r.dispatchRemote(ctx, target, method, payload)
	}

	msg := NewMessage(target, method, payload)
	if err := send(ctx, inbound, msg); err != nil {
		return nil, routeErr(target, err)
	}
	result, err := msg.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", target, err)
	}
	return result, nil
}

// send delivers a message into a bounded inbound queue, suspending while the
// queue is full. A closed inbound channel surfaces as ErrTargetUnavailable
// rather than a panic.
func send(ctx context.Context, inbound chan<- *Message, msg *Message) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrTargetUnavailable
		}
	}()
	select {
	case inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) dispatchRemote(ctx context.Context, target, method string, payload Payload) (Payload, error) {
	if r.remote == nil || r.membership == nil {
		return nil, routeErr(target, ErrTargetNotFound)
	}
	node, ok := r.membership.FindNodeFor(target)
	if !ok {
		return nil, routeErr(target, ErrTargetNotFound)
	}
	r.logger.Debug("Forwarding call to remote node", "target", target, "node_id", node.ID.String(), "address", node.Address.String())
	result, err := r.remote.DispatchRemote(ctx, node, target, method, payload)
	if err != nil {
		return nil, routeErr(target, fmt.Errorf("remote dispatch via %s: %w", node.ID, err))
	}
	return result, nil
}
