package ws

import "sync"

// Registry is the in-process mapping from user id to live connection handle.
// It is the single source of truth for who is online, and the only shared
// structure in the package that needs its own lock. A fresh Registry is
// injected into every collaborator, never held as package state.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Handle)}
}

// Register installs handle as the current connection for userID. A prior
// handle for the same user is force-closed so a reconnecting user never
// leaks a duplicate socket; the superseded connection's read loop observes
// the close and exits.
func (r *Registry) Register(userID string, handle Handle) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = handle
	r.mu.Unlock()

	if prev != nil && prev != handle {
		_ = prev.Close()
	}
}

// Deregister removes the mapping only if handle is still the registered
// connection for userID. This guards against the race where a replaced
// connection's late disconnect callback would evict its successor. It
// returns true if the mapping was removed.
func (r *Registry) Deregister(userID string, handle Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userID] != handle {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the live handle for userID, or nil if the user is offline.
func (r *Registry) Lookup(userID string) Handle {
	r.mu.RLock()
	handle := r.conns[userID]
	r.mu.RUnlock()
	return handle
}

// UserIDs returns a snapshot of all online user ids.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	return ids
}

// All returns a snapshot of the current user-to-handle mapping. The returned
// map is safe to iterate without holding the lock.
func (r *Registry) All() map[string]Handle {
	r.mu.RLock()
	snapshot := make(map[string]Handle, len(r.conns))
	for id, handle := range r.conns {
		snapshot[id] = handle
	}
	r.mu.RUnlock()
	return snapshot
}

// Count returns the current number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.conns)
	r.mu.RUnlock()
	return n
}
