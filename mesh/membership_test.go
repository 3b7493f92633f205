package mesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembership_UpsertAndFind(t *testing.T) {
	m := NewMembership()
	m.Upsert("node-1", "10.0.0.1:9000", []string{"search", "ledger"})

	info, ok := m.FindNodeFor("ledger")
	require.True(t, ok)
	assert.Equal(t, NodeID("node-1"), info.ID)
	assert.Equal(t, NodeAddress("10.0.0.1:9000"), info.Address)
	assert.False(t, info.LastSeen.IsZero())

	_, ok = m.FindNodeFor("unknown-capability")
	assert.False(t, ok)
}

func TestMembership_UpsertRefreshesLastSeen(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewMembership(func(o *MembershipOptions) {
		o.Now = func() time.Time { return now }
	})

	m.Upsert("node-1", "10.0.0.1:9000", []string{"search"})
	first := m.Nodes()[0].LastSeen

	now = now.Add(30 * time.Second)
	m.Upsert("node-1", "10.0.0.1:9001", []string{"search"})

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].LastSeen.After(first))
	assert.Equal(t, NodeAddress("10.0.0.1:9001"), nodes[0].Address, "last write wins")
}

func TestMembership_StaleEntriesSkippedAndEvicted(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewMembership(func(o *MembershipOptions) {
		o.StaleAfter = time.Minute
		o.Now = func() time.Time { return now }
	})

	m.Upsert("node-1", "10.0.0.1:9000", []string{"search"})
	m.Upsert("node-2", "10.0.0.2:9000", []string{"ledger"})

	now = now.Add(2 * time.Minute)
	m.Upsert("node-2", "10.0.0.2:9000", []string{"ledger"})

	_, ok := m.FindNodeFor("search")
	assert.False(t, ok, "stale node must not serve lookups")
	_, ok = m.FindNodeFor("ledger")
	assert.True(t, ok)

	assert.Equal(t, 1, m.EvictStale())
	assert.Len(t, m.Nodes(), 1)
}

func TestNewNodeID_Unique(t *testing.T) {
	a := NewNodeID()
	b := NewNodeID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a.String())
}
