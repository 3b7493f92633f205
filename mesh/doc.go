// Package mesh implements the call envelope and routing layer of the host
// kernel. It defines the core abstractions for:
//
//   - Payloads (the opaque value type carried by every mesh call)
//   - Messages (one in-flight call with a one-shot reply slot)
//   - The Router (component id -> inbound channel dispatch table, with an
//     optional remote dispatcher for cluster forwarding)
//   - Cluster identity types (NodeID, NodeAddress, NodeInfo) and the
//     membership view used to locate capabilities on other nodes
//   - Serve, the component-side receive loop that guarantees exactly one
//     reply per message
//
// The router never parses or validates payload contents and never enforces a
// timeout of its own; callers that need a deadline pass a context with one.
// Cluster transport is a consumed interface (RemoteDispatcher), never
// implemented here.
package mesh
