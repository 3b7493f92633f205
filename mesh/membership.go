package mesh

import (
	"sync"
	"time"
)

// DefaultStaleAfter is the age past which a membership entry stops being
// considered live. Stale entries are skipped by lookups and removed by
// EvictStale.
const DefaultStaleAfter = 90 * time.Second

// Membership is the local view of cluster nodes and the capabilities they
// serve. It is fed by the bootstrap/discovery layer (an external
// collaborator) via Upsert and consulted by the router when a dispatch
// target is not registered locally.
type Membership struct {
	mu         sync.RWMutex
	nodes      map[NodeID]NodeInfo
	staleAfter time.Duration
	now        func() time.Time
}

// MembershipOptions configures a Membership view.
type MembershipOptions struct {
	// StaleAfter is the TTL past which entries are ignored and evictable.
	StaleAfter time.Duration

	// Now overrides the clock, used by tests to control staleness.
	Now func() time.Time
}

// NewMembership constructs an empty membership view.
func NewMembership(optFns ...func(o *MembershipOptions)) *Membership {
	opts := MembershipOptions{StaleAfter: DefaultStaleAfter, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Membership{nodes: make(map[NodeID]NodeInfo), staleAfter: opts.StaleAfter, now: opts.Now}
}

// Upsert installs or refreshes a node entry, stamping LastSeen with the
// current time. Last write wins for address and capabilities.
func (m *Membership) Upsert(id NodeID, address NodeAddress, capabilities []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	caps := make([]string, len(capabilities))
	copy(caps, capabilities)
	m.nodes[id] = NodeInfo{ID: id, Address: address, Capabilities: caps, LastSeen: m.now()}
}

// FindNodeFor returns a live node advertising the given capability. Stale
// entries are skipped, not removed; removal happens in EvictStale so the
// lookup path stays read-locked.
func (m *Membership) FindNodeFor(capability string) (NodeInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().Add(-m.staleAfter)
	for _, info := range m.nodes {
		if info.LastSeen.Before(cutoff) {
			continue
		}
		for _, c := range info.Capabilities {
			if c == capability {
				return info, true
			}
		}
	}
	return NodeInfo{}, false
}

// Nodes returns a snapshot of all entries, live or stale.
func (m *Membership) Nodes() []NodeInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NodeInfo, 0, len(m.nodes))
	for _, info := range m.nodes {
		out = append(out, info)
	}
	return out
}

// EvictStale removes entries older than the TTL and returns how many were
// dropped.
func (m *Membership) EvictStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.staleAfter)
	evicted := 0
	for id, info := range m.nodes {
		if info.LastSeen.Before(cutoff) {
			delete(m.nodes, id)
			evicted++
		}
	}
	return evicted
}
