package store

import "sync"

// TokenRegistry interns label and relationship-type names. Tokens are
// assigned densely in first-seen order.
type TokenRegistry struct {
	mu    sync.RWMutex
	ids   map[string]TokenID
	names []string
}

// NewTokenRegistry creates an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{ids: make(map[string]TokenID)}
}

// Lookup returns the token for name.
func (r *TokenRegistry) Lookup(name string) (TokenID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[name]
	return id, ok
}

// Intern returns the token for name, assigning one if needed.
func (r *TokenRegistry) Intern(name string) TokenID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := TokenID(len(r.names))
	r.ids[name] = id
	r.names = append(r.names, name)
	return id
}

func (r *TokenRegistry) Name(id TokenID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || int(id) >= len(r.names) {
		return "", false
	}
	return r.names[id], true
}

// Names returns the names in token order.
func (r *TokenRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}
