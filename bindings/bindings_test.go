package bindings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshkernel/mesh"
	"github.com/hupe1980/meshkernel/store"
)

func TestStubs_DeterministicWithoutHost(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	rows, err := b.SQLState().Query(ctx, "SELECT value FROM state WHERE key = ?", []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	affected, err := b.SQLState().Execute(ctx, "DELETE FROM state WHERE key = ?", []string{"k"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	reply, err := b.ServiceMesh().Call(ctx, "supervisor", "status", mesh.JSON("{}"))
	require.NoError(t, err)
	assert.Equal(t, mesh.JSON(`{"status":"accepted"}`), reply)
}

type recordingHost struct {
	lastSQL    string
	lastTarget string
}

func (h *recordingHost) SQLQuery(_ context.Context, sql string, _ []string) ([]store.Row, error) {
	h.lastSQL = sql
	return []store.Row{{Columns: []string{"key", "value"}, Values: []string{"k", "v"}}}, nil
}

func (h *recordingHost) SQLExecute(_ context.Context, sql string, _ []string) (uint32, error) {
	h.lastSQL = sql
	return 1, nil
}

func (h *recordingHost) MeshCall(_ context.Context, target, _ string, _ mesh.Payload) (mesh.Payload, error) {
	h.lastTarget = target
	return mesh.JSON(`"pong"`), nil
}

func TestFacade_DelegatesToAttachedHost(t *testing.T) {
	host := &recordingHost{}
	b := New(host)
	ctx := context.Background()

	rows, err := b.SQLState().Query(ctx, "SELECT value FROM state WHERE key = ?", []string{"k"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SELECT value FROM state WHERE key = ?", host.lastSQL)

	affected, err := b.SQLState().Execute(ctx, "DELETE FROM state WHERE key = ?", []string{"k"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	reply, err := b.ServiceMesh().Call(ctx, "supervisor", "ping", mesh.JSON(`"hi"`))
	require.NoError(t, err)
	assert.Equal(t, mesh.JSON(`"pong"`), reply)
	assert.Equal(t, "supervisor", host.lastTarget)
}
