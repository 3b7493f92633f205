package vfs

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/meshkernel/logging"
)

// SessionState is the lifecycle state of a workspace session.
type SessionState int

const (
	// StateOpen accepts staged mutations.
	StateOpen SessionState = iota
	// StateCommitted means staged mutations were applied; terminal.
	StateCommitted
	// StateAbandoned means staged mutations were discarded; terminal.
	StateAbandoned
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// SessionError reports a caller error against the session manager: an
// unknown or already-terminal session id, an invalid base path, or a staged
// path escaping the session's base. It is never fatal to the kernel.
type SessionError struct {
	SessionID string
	Reason    string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("session: %s", e.Reason)
	}
	return fmt.Sprintf("session %q: %s", e.SessionID, e.Reason)
}

// session is the bookkeeping for one workspace.
type session struct {
	id       string
	basePath string
	state    SessionState
	created  time.Time
	staged   map[string][]byte
	deleted  map[string]bool
}

// Manager owns the resource tree and all session bookkeeping. Multiple
// components may begin and commit sessions concurrently; a mutex serializes
// the short bookkeeping sections.
type Manager struct {
	mu       sync.Mutex
	tree     map[string][]byte
	sessions map[string]*session
	logger   logging.Logger
}

// NewManager constructs an empty resource tree with no sessions.
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Manager{tree: make(map[string][]byte), sessions: make(map[string]*session), logger: logger}
}

// BeginSession opens a workspace rooted at basePath and returns its id.
// The base path must be a clean rooted slash path without traversal
// segments.
func (m *Manager) BeginSession(basePath string) (string, error) {
	cleaned, err := cleanBasePath(basePath)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.sessions[id] = &session{
		id:       id,
		basePath: cleaned,
		state:    StateOpen,
		created:  time.Now().UTC(),
		staged:   make(map[string][]byte),
		deleted:  make(map[string]bool),
	}
	m.logger.Debug("Session opened", "session_id", id, "base_path", cleaned)
	return id, nil
}

// Stage records a pending write under the session. The path must fall under
// the session's base.
func (m *Manager) Stage(sessionID, p string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.openSessionLocked(sessionID)
	if err != nil {
		return err
	}
	resolved, err := sess.resolve(p)
	if err != nil {
		return err
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	sess.staged[resolved] = buf
	delete(sess.deleted, resolved)
	return nil
}

// StageDelete records a pending delete under the session.
func (m *Manager) StageDelete(sessionID, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.openSessionLocked(sessionID)
	if err != nil {
		return err
	}
	resolved, err := sess.resolve(p)
	if err != nil {
		return err
	}
	delete(sess.staged, resolved)
	sess.deleted[resolved] = true
	return nil
}

// Read returns the content visible at p from inside the session: staged
// mutations overlay the committed tree.
func (m *Manager) Read(sessionID, p string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.openSessionLocked(sessionID)
	if err != nil {
		return nil, false, err
	}
	resolved, err := sess.resolve(p)
	if err != nil {
		return nil, false, err
	}
	if sess.deleted[resolved] {
		return nil, false, nil
	}
	if content, ok := sess.staged[resolved]; ok {
		return copyBytes(content), true, nil
	}
	content, ok := m.tree[resolved]
	if !ok {
		return nil, false, nil
	}
	return copyBytes(content), true, nil
}

// ReadCommitted returns the content at p in the committed tree, outside any
// session.
func (m *Manager) ReadCommitted(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.tree[path.Clean(p)]
	if !ok {
		return nil, false
	}
	return copyBytes(content), true
}

// CommitSession atomically applies all staged mutations to the resource tree
// and transitions the session to Committed. Unknown or terminal ids fail
// with a SessionError.
func (m *Manager) CommitSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.openSessionLocked(sessionID)
	if err != nil {
		return err
	}
	for p, content := range sess.staged {
		m.tree[p] = content
	}
	for p := range sess.deleted {
		delete(m.tree, p)
	}
	sess.state = StateCommitted
	sess.staged = nil
	sess.deleted = nil
	m.logger.Debug("Session committed", "session_id", sessionID)
	return nil
}

// Abandon discards a session's staged mutations and transitions it to
// Abandoned.
func (m *Manager) Abandon(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.openSessionLocked(sessionID)
	if err != nil {
		return err
	}
	sess.state = StateAbandoned
	sess.staged = nil
	sess.deleted = nil
	m.logger.Debug("Session abandoned", "session_id", sessionID)
	return nil
}

// AbandonOpen abandons every open session and returns how many were
// discarded. The kernel calls this during shutdown.
func (m *Manager) AbandonOpen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	abandoned := 0
	for _, sess := range m.sessions {
		if sess.state == StateOpen {
			sess.state = StateAbandoned
			sess.staged = nil
			sess.deleted = nil
			abandoned++
		}
	}
	return abandoned
}

// State reports the lifecycle state of a session id.
func (m *Manager) State(sessionID string) (SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return 0, false
	}
	return sess.state, true
}

// BasePath returns the base path a session was rooted at.
func (m *Manager) BasePath(sessionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return "", false
	}
	return sess.basePath, true
}

func (m *Manager) openSessionLocked(sessionID string) (*session, error) {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, &SessionError{SessionID: sessionID, Reason: "unknown session"}
	}
	if sess.state != StateOpen {
		return nil, &SessionError{SessionID: sessionID, Reason: "unknown session (already " + sess.state.String() + ")"}
	}
	return sess, nil
}

// resolve joins a session-relative path onto the base and rejects escapes.
func (s *session) resolve(p string) (string, error) {
	joined := path.Join(s.basePath, p)
	if joined != s.basePath && !strings.HasPrefix(joined, s.basePath+"/") {
		return "", &SessionError{SessionID: s.id, Reason: fmt.Sprintf("path %q escapes session base %q", p, s.basePath)}
	}
	return joined, nil
}

func cleanBasePath(basePath string) (string, error) {
	if basePath == "" || !strings.HasPrefix(basePath, "/") {
		return "", &SessionError{Reason: fmt.Sprintf("invalid base path %q: must be rooted", basePath)}
	}
	if strings.Contains(basePath, "..") {
		return "", &SessionError{Reason: fmt.Sprintf("invalid base path %q: traversal not allowed", basePath)}
	}
	cleaned := path.Clean(basePath)
	return cleaned, nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
