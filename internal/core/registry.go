package core

import "sync"

// Registry owns the in-memory mapping from call id to session. Each entry
// carries its own lock so operations on one call are applied strictly
// serially while independent calls proceed in parallel.
type Registry struct {
	mu       sync.RWMutex
	sessions map[CallID]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *CallSession
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[CallID]*sessionEntry),
	}
}

// Insert registers a freshly created session.
func (r *Registry) Insert(s *CallSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &sessionEntry{session: s}
}

// With runs fn with the session locked. Returns ErrCallNotFound if the call
// id is unknown. All state machine mutation happens inside fn.
func (r *Registry) With(id CallID, fn func(*CallSession) error) error {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return ErrCallNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

// Snapshot returns an immutable copy of a session's state.
func (r *Registry) Snapshot(id CallID) (SessionSnapshot, error) {
	var snap SessionSnapshot
	err := r.With(id, func(s *CallSession) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// FindByConversation returns the id of a non-ended session owned by the
// given conversation and initiator, if one exists. Used to make repeated
// initiate requests idempotent.
func (r *Registry) FindByConversation(conversationID string, initiator SignalingAddress) (CallID, bool) {
	r.mu.RLock()
	ids := make([]CallID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		var match bool
		err := r.With(id, func(s *CallSession) error {
			match = s.ConversationID == conversationID &&
				s.Initiator == initiator &&
				s.Status != CallStatusEnded
			return nil
		})
		if err == nil && match {
			return id, true
		}
	}
	return "", false
}

// IDs returns the ids of all registered sessions.
func (r *Registry) IDs() []CallID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]CallID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Remove tears a session down. The caller must have ended it first.
func (r *Registry) Remove(id CallID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
