package testutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/meshkernel/mesh"
)

// EchoComponent starts a component loop that replies to every call with its
// own payload. It returns the inbound channel for registration. The loop
// stops when ctx is cancelled.
func EchoComponent(ctx context.Context, buffer int) chan *mesh.Message {
	inbound := make(chan *mesh.Message, buffer)
	go mesh.Serve(ctx, inbound, func(_ context.Context, msg *mesh.Message) (mesh.Payload, error) {
		return msg.Payload, nil
	})
	return inbound
}

// ReplyComponent starts a component loop that maps method names to fixed
// JSON replies. Unknown methods fail with an error reply.
func ReplyComponent(ctx context.Context, buffer int, replies map[string]string) chan *mesh.Message {
	inbound := make(chan *mesh.Message, buffer)
	go mesh.Serve(ctx, inbound, func(_ context.Context, msg *mesh.Message) (mesh.Payload, error) {
		reply, ok := replies[msg.Method]
		if !ok {
			return nil, fmt.Errorf("unknown method %q", msg.Method)
		}
		return mesh.JSON(reply), nil
	})
	return inbound
}

// Patch builds an opaque JSON patch document for broadcaster tests.
func Patch(op, path, value string) json.RawMessage {
	doc, _ := json.Marshal(map[string]string{"op": op, "path": path, "value": value})
	return doc
}
