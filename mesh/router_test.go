package mesh

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startEcho(t *testing.T, r *Router, id string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	inbound := make(chan *Message, 8)
	go Serve(ctx, inbound, func(_ context.Context, msg *Message) (Payload, error) {
		return msg.Payload, nil
	})
	r.Register(id, inbound)
}

func TestRouter_DispatchLocal(t *testing.T) {
	r := NewRouter()
	startEcho(t, r, "echo")

	result, err := r.Dispatch(context.Background(), "echo", "any", JSON(`"hi"`))
	require.NoError(t, err)
	assert.Equal(t, JSON(`"hi"`), result)
}

func TestRouter_UnknownTargetFailsFast(t *testing.T) {
	r := NewRouter()

	start := time.Now()
	_, err := r.Dispatch(context.Background(), "ghost", "ping", JSON("{}"))
	require.ErrorIs(t, err, ErrTargetNotFound)

	var routeErr *RouteError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, "ghost", routeErr.Target)
	assert.Less(t, time.Since(start), time.Second, "not-found must not block")
}

func TestRouter_ReRegistrationOverwrites(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan *Message, 1)
	go Serve(ctx, first, func(_ context.Context, _ *Message) (Payload, error) {
		return JSON(`"first"`), nil
	})
	second := make(chan *Message, 1)
	go Serve(ctx, second, func(_ context.Context, _ *Message) (Payload, error) {
		return JSON(`"second"`), nil
	})

	r.Register("comp", first)
	r.Register("comp", second)

	result, err := r.Dispatch(context.Background(), "comp", "whoami", JSON("{}"))
	require.NoError(t, err)
	assert.Equal(t, JSON(`"second"`), result)
}

func TestRouter_HandlerErrorPropagates(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbound := make(chan *Message, 1)
	go Serve(ctx, inbound, func(_ context.Context, _ *Message) (Payload, error) {
		return nil, errors.New("component failure")
	})
	r.Register("flaky", inbound)

	_, err := r.Dispatch(context.Background(), "flaky", "work", JSON("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component failure")
}

func TestRouter_NilHandlerResultIsDroppedReply(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbound := make(chan *Message, 1)
	go Serve(ctx, inbound, func(_ context.Context, _ *Message) (Payload, error) {
		return nil, nil
	})
	r.Register("silent", inbound)

	result, err := r.Dispatch(context.Background(), "silent", "work", JSON("{}"))
	require.ErrorIs(t, err, ErrReplyDropped, "a nil payload with nil error must not surface as success")
	assert.Nil(t, result)
}

func TestRouter_HandlerPanicResolvesAsError(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbound := make(chan *Message, 1)
	go Serve(ctx, inbound, func(_ context.Context, _ *Message) (Payload, error) {
		panic("component bug")
	})
	r.Register("panicky", inbound)

	_, err := r.Dispatch(context.Background(), "panicky", "work", JSON("{}"))
	require.Error(t, err, "a dispatched call must resolve even when the handler panics")
	assert.Contains(t, err.Error(), "component bug")
}

func TestRouter_FIFOPerSenderTargetPair(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []string
	inbound := make(chan *Message, 16)
	go Serve(ctx, inbound, func(_ context.Context, msg *Message) (Payload, error) {
		order = append(order, msg.Method)
		return JSON("{}"), nil
	})
	r.Register("sink", inbound)

	const calls = 50
	for i := 0; i < calls; i++ {
		_, err := r.Dispatch(context.Background(), "sink", fmt.Sprintf("m%03d", i), JSON("{}"))
		require.NoError(t, err)
	}

	require.Len(t, order, calls)
	for i := 0; i < calls; i++ {
		assert.Equal(t, fmt.Sprintf("m%03d", i), order[i])
	}
}

func TestRouter_DispatchCancelledWhileWaiting(t *testing.T) {
	r := NewRouter()

	// A component that receives but never replies on its own; Serve is not
	// used here precisely to model a stalled target.
	inbound := make(chan *Message, 1)
	r.Register("stalled", inbound)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Dispatch(ctx, "stalled", "work", JSON("{}"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The message still reached the target's queue.
	msg := <-inbound
	assert.Equal(t, "work", msg.Method)
}

func TestRouter_MaxInFlightRespectsContext(t *testing.T) {
	r := NewRouter(func(o *RouterOptions) { o.MaxInFlight = 1 })

	// Hold the only slot with a stalled call.
	inbound := make(chan *Message, 1)
	r.Register("stalled", inbound)

	held := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		close(held)
		_, _ = r.Dispatch(ctx, "stalled", "work", JSON("{}"))
	}()
	<-held
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Dispatch(ctx, "stalled", "work", JSON("{}"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Unblock the held call's message.
	<-inbound
}

type fakeRemote struct {
	lastNode   NodeInfo
	lastTarget string
	reply      Payload
	err        error
}

func (f *fakeRemote) DispatchRemote(_ context.Context, node NodeInfo, target, _ string, _ Payload) (Payload, error) {
	f.lastNode = node
	f.lastTarget = target
	return f.reply, f.err
}

func TestRouter_RemoteForwarding(t *testing.T) {
	membership := NewMembership()
	membership.Upsert("node-2", "10.0.0.2:9000", []string{"remote-comp"})
	remote := &fakeRemote{reply: JSON(`"remote pong"`)}

	r := NewRouter(func(o *RouterOptions) {
		o.Remote = remote
		o.Membership = membership
	})

	result, err := r.Dispatch(context.Background(), "remote-comp", "ping", JSON(`"hi"`))
	require.NoError(t, err)
	assert.Equal(t, JSON(`"remote pong"`), result)
	assert.Equal(t, NodeID("node-2"), remote.lastNode.ID)
	assert.Equal(t, "remote-comp", remote.lastTarget)
}

func TestRouter_RemoteTransportFailure(t *testing.T) {
	membership := NewMembership()
	membership.Upsert("node-2", "10.0.0.2:9000", []string{"remote-comp"})
	remote := &fakeRemote{err: errors.New("connection refused")}

	r := NewRouter(func(o *RouterOptions) {
		o.Remote = remote
		o.Membership = membership
	})

	_, err := r.Dispatch(context.Background(), "remote-comp", "ping", JSON("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRouter_RemoteNoNodeForCapability(t *testing.T) {
	r := NewRouter(func(o *RouterOptions) {
		o.Remote = &fakeRemote{}
		o.Membership = NewMembership()
	})

	_, err := r.Dispatch(context.Background(), "nowhere", "ping", JSON("{}"))
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRouter_ClosedInboundChannelIsUnavailable(t *testing.T) {
	r := NewRouter()

	inbound := make(chan *Message)
	r.Register("dead", inbound)
	close(inbound)

	_, err := r.Dispatch(context.Background(), "dead", "ping", JSON("{}"))
	require.ErrorIs(t, err, ErrTargetUnavailable)
}

func TestRouter_DeregisteredTargetNotFound(t *testing.T) {
	r := NewRouter()
	startEcho(t, r, "gone")
	require.True(t, r.Registered("gone"))

	r.Deregister("gone")
	assert.False(t, r.Registered("gone"))

	_, err := r.Dispatch(context.Background(), "gone", "ping", JSON("{}"))
	require.ErrorIs(t, err, ErrTargetNotFound)
}
