package mesh

import (
	"context"
	"fmt"
)

// HandlerFunc processes one inbound call and produces its reply payload.
// Returning an error delivers an error reply to the caller.
type HandlerFunc func(ctx context.Context, msg *Message) (Payload, error)

// Serve runs a component's receive loop over its inbound channel. It
// guarantees the exactly-once reply invariant for in-process components:
// every received message gets exactly one reply, even when the handler
// panics or returns a nil payload, so a waiting caller never hangs on a
// dropped reply and never observes a nil success.
//
// The loop exits when ctx is cancelled or the inbound channel is closed.
// Messages still queued at exit are answered with ErrReplyDropped.
func Serve(ctx context.Context, inbound <-chan *Message, handler HandlerFunc) {
	for {
		select {
		case <-ctx.Done():
			drain(inbound)
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			handle(ctx, msg, handler)
		}
	}
}

func handle(ctx context.Context, msg *Message, handler HandlerFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			msg.ReplyError(fmt.Errorf("handler panic: %v", rec))
		}
		// Handler returned without replying.
		msg.ReplyError(ErrReplyDropped)
	}()
	result, err := handler(ctx, msg)
	if err != nil {
		msg.ReplyError(err)
		return
	}
	if result == nil {
		// A nil payload is outside the reply contract; treat it as the
		// handler dropping the reply.
		msg.ReplyError(ErrReplyDropped)
		return
	}
	msg.Reply(result)
}

// drain answers queued messages that will never be processed.
func drain(inbound <-chan *Message) {
	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			msg.ReplyError(ErrReplyDropped)
		default:
			return
		}
	}
}
