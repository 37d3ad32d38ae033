package gateway

import (
	"sort"
	"sync"

	"github.com/kasku/chat-gateway/internal/config"
)

// IdentityKey indexes the registry: an account id, or the shared bot key.
type IdentityKey string

func (k IdentityKey) String() string {
	return string(k)
}

// KeyFor maps an account to its registry key under the given gateway mode.
func KeyFor(mode config.GatewayMode, accountID string) IdentityKey {
	if mode == config.GatewayModeShared {
		return IdentityKey(config.SharedIdentityKey)
	}
	return IdentityKey(accountID)
}

// Registry maps identity keys to live sessions. Readers get snapshot copies;
// only the controller mutates a session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[IdentityKey]*session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[IdentityKey]*session)}
}

func (r *Registry) Get(key IdentityKey) (Connection, bool) {
	s := r.lookup(key)
	if s == nil {
		return Connection{}, false
	}
	return s.snapshot(), true
}

// List returns snapshots ordered by key.
func (r *Registry) List() []Connection {
	r.mu.RLock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Connection, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) lookup(key IdentityKey) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[key]
}

// put stores s unless an entry exists, in which case the existing one is returned.
func (r *Registry) put(s *session) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.key]; ok {
		return existing, false
	}
	r.sessions[s.key] = s
	return s, true
}

// remove deletes the entry only if it still points at s.
func (r *Registry) remove(s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[s.key]; ok && current == s {
		delete(r.sessions, s.key)
		return true
	}
	return false
}

func (r *Registry) all() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
