package mesh

import (
	"time"

	"github.com/google/uuid"
)

// NodeID is the opaque unique identifier of a kernel instance in a cluster.
// Values compare and hash by content, so NodeID is usable as a map key.
type NodeID string

// NewNodeID generates a random node identifier for nodes without an
// externally assigned identity.
func NewNodeID() NodeID { return NodeID(uuid.NewString()) }

// String returns the raw identifier.
func (id NodeID) String() string { return string(id) }

// NodeAddress is the reachable network address of a node's mesh transport
// endpoint.
type NodeAddress string

// String returns the raw address.
func (a NodeAddress) String() string { return string(a) }

// NodeInfo describes one remote kernel instance: its identity, transport
// address, the capabilities (component ids) it can serve and the last time it
// was seen. LastSeen drives staleness eviction in the membership view.
type NodeInfo struct {
	ID           NodeID      `json:"id"`
	Address      NodeAddress `json:"address"`
	Capabilities []string    `json:"capabilities"`
	LastSeen     time.Time   `json:"last_seen"`
}

// Config carries this node's own identity, listen address and bootstrap
// peers. It is immutable after kernel construction; the values arrive
// already parsed from the process bootstrap layer.
type Config struct {
	NodeID         NodeID
	ListenAddress  NodeAddress
	BootstrapPeers []NodeAddress
}

// DefaultConfig returns a single-node configuration with a random identity.
func DefaultConfig() Config {
	return Config{NodeID: NewNodeID()}
}
