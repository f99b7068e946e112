package resolve

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/server"
)

// SessionKey identifies one client session for affinity purposes. Keys are
// stable for the life of a session and nothing more.
type SessionKey string

// LocalSession is the key used when no client session is attached to the
// context (stdio transport, CLI).
const LocalSession SessionKey = "local"

// SessionKeyFromContext derives the affinity key from the caller's MCP
// session.
func SessionKeyFromContext(ctx context.Context) SessionKey {
	if cs := server.ClientSessionFromContext(ctx); cs != nil {
		if id := cs.SessionID(); id != "" {
			return SessionKey(id)
		}
	}
	return LocalSession
}

// Sessions remembers, per client session, which instance was last explicitly
// selected. Entries are created only on explicit selection.
type Sessions struct {
	mu     sync.Mutex
	active map[SessionKey]string
}

// NewSessions creates an empty affinity map.
func NewSessions() *Sessions {
	return &Sessions{active: make(map[SessionKey]string)}
}

// Set records an explicit instance selection for a session.
func (s *Sessions) Set(key SessionKey, instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[key] = instanceID
}

// Get returns the instance last selected by a session, if any.
func (s *Sessions) Get(key SessionKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[key]
	return id, ok
}

// Drop forgets a session's selection; called when the client session ends.
func (s *Sessions) Drop(key SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, key)
}
