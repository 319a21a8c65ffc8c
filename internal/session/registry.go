package session

import (
	"sort"
	"sync"
)

// Registry maps sender identity to Session. Sessions are created lazily on
// first contact and live for the process lifetime; the registry is the only
// cross-session shared structure.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	deps     Deps
}

// NewRegistry creates an empty registry whose sessions share deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		deps:     deps,
	}
}

// GetOrCreate returns the session for userID, creating it on first contact.
// Idempotent under concurrent calls for the same identity: exactly one
// Session ever exists per user.
func (r *Registry) GetOrCreate(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := NewSession(userID, r.deps)
	r.sessions[userID] = s
	return s
}

// Get returns the session for userID if one exists.
func (r *Registry) Get(userID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns per-session state for all sessions, ordered by user id.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].UserID < infos[j].UserID })
	return infos
}
