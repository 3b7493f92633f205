package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_BeginCommitLifecycle(t *testing.T) {
	m := NewManager(nil)

	id, err := m.BeginSession("/workspace/app")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state, ok := m.State(id)
	require.True(t, ok)
	assert.Equal(t, StateOpen, state)

	require.NoError(t, m.CommitSession(id))

	state, _ = m.State(id)
	assert.Equal(t, StateCommitted, state)

	// A second commit with the same id is a caller error, not a kernel fault.
	err = m.CommitSession(id)
	require.Error(t, err)
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, id, sessErr.SessionID)
}

func TestManager_CommitUnknownSession(t *testing.T) {
	m := NewManager(nil)

	err := m.CommitSession("never-issued")
	require.Error(t, err)
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
}

func TestManager_InvalidBasePath(t *testing.T) {
	m := NewManager(nil)

	for _, basePath := range []string{"", "relative/path", "/workspace/../etc"} {
		_, err := m.BeginSession(basePath)
		require.Error(t, err, "base path %q must be rejected", basePath)
		var sessErr *SessionError
		require.ErrorAs(t, err, &sessErr)
	}
}

func TestManager_StagedMutationsInvisibleUntilCommit(t *testing.T) {
	m := NewManager(nil)

	id, err := m.BeginSession("/workspace")
	require.NoError(t, err)
	require.NoError(t, m.Stage(id, "notes.txt", []byte("draft")))

	// Invisible outside the session while open.
	_, ok := m.ReadCommitted("/workspace/notes.txt")
	assert.False(t, ok)

	// Visible inside the session (staged overlays base).
	content, ok, err := m.Read(id, "notes.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("draft"), content)

	require.NoError(t, m.CommitSession(id))

	content, ok = m.ReadCommitted("/workspace/notes.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("draft"), content)
}

func TestManager_StageDeleteAppliesOnCommit(t *testing.T) {
	m := NewManager(nil)

	setup, err := m.BeginSession("/workspace")
	require.NoError(t, err)
	require.NoError(t, m.Stage(setup, "old.txt", []byte("v1")))
	require.NoError(t, m.CommitSession(setup))

	id, err := m.BeginSession("/workspace")
	require.NoError(t, err)
	require.NoError(t, m.StageDelete(id, "old.txt"))

	// Deleted inside the session, still present outside.
	_, ok, err := m.Read(id, "old.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok = m.ReadCommitted("/workspace/old.txt")
	assert.True(t, ok)

	require.NoError(t, m.CommitSession(id))
	_, ok = m.ReadCommitted("/workspace/old.txt")
	assert.False(t, ok)
}

func TestManager_PathEscapeRejected(t *testing.T) {
	m := NewManager(nil)

	id, err := m.BeginSession("/workspace/app")
	require.NoError(t, err)

	err = m.Stage(id, "../../etc/passwd", []byte("x"))
	require.Error(t, err)
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
}

func TestManager_AbandonDiscardsStagedMutations(t *testing.T) {
	m := NewManager(nil)

	id, err := m.BeginSession("/workspace")
	require.NoError(t, err)
	require.NoError(t, m.Stage(id, "file.txt", []byte("discarded")))
	require.NoError(t, m.Abandon(id))

	_, ok := m.ReadCommitted("/workspace/file.txt")
	assert.False(t, ok)

	err = m.CommitSession(id)
	require.Error(t, err, "abandoned sessions are terminal")
}

func TestManager_AbandonOpenAtShutdown(t *testing.T) {
	m := NewManager(nil)

	open1, err := m.BeginSession("/a")
	require.NoError(t, err)
	open2, err := m.BeginSession("/b")
	require.NoError(t, err)
	committed, err := m.BeginSession("/c")
	require.NoError(t, err)
	require.NoError(t, m.CommitSession(committed))

	assert.Equal(t, 2, m.AbandonOpen())

	for _, id := range []string{open1, open2} {
		state, ok := m.State(id)
		require.True(t, ok)
		assert.Equal(t, StateAbandoned, state)
	}
}

func TestManager_BasePathCleaned(t *testing.T) {
	m := NewManager(nil)

	id, err := m.BeginSession("/workspace//app/")
	require.NoError(t, err)

	basePath, ok := m.BasePath(id)
	require.True(t, ok)
	assert.Equal(t, "/workspace/app", basePath)
}
