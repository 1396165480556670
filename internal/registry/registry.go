// Package registry tracks live realtime subscriptions by logical name
// so repeated screen transitions can never leak duplicate listeners.
package registry

import (
	"log"
	"sync"
)

// Subscription keys used across the services.
const (
	KeyAuthState      = "authState"
	KeyFriendRequests = "friendRequests"
	KeyFriendsList    = "friendsList"
	KeyChatMessages   = "chatMessages"
)

type entry struct {
	stop  func()
	token uint64
}

// Registry guarantees at most one live subscription per key. Register
// tears down any previous holder of the key before storing the new one.
type Registry struct {
	mu        sync.Mutex
	active    map[string]entry
	nextToken uint64
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{active: make(map[string]entry)}
}

// Register stores stop as the teardown for key and returns a token
// identifying this registration. An existing subscription under the
// same key is stopped first. The token lets the owner tear down only
// its own registration later; see UnregisterToken.
func (r *Registry) Register(key string, stop func()) uint64 {
	r.mu.Lock()
	r.nextToken++
	token := r.nextToken
	prev, had := r.active[key]
	r.active[key] = entry{stop: stop, token: token}
	r.mu.Unlock()

	if had && prev.stop != nil {
		prev.stop()
	}
	log.Printf("Listener registered: %s\n", key)
	return token
}

// Unregister stops and removes the subscription under key, if any.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	e, ok := r.active[key]
	delete(r.active, key)
	r.mu.Unlock()

	if ok {
		if e.stop != nil {
			e.stop()
		}
		log.Printf("Listener unregistered: %s\n", key)
	}
}

// UnregisterToken stops and removes the subscription under key only if
// it is still the registration identified by token. A stale owner (one
// whose registration was already superseded) is a no-op, so an old
// connection's teardown can never kill its successor's subscription.
func (r *Registry) UnregisterToken(key string, token uint64) {
	r.mu.Lock()
	e, ok := r.active[key]
	if !ok || e.token != token {
		r.mu.Unlock()
		return
	}
	delete(r.active, key)
	r.mu.Unlock()

	if e.stop != nil {
		e.stop()
	}
	log.Printf("Listener unregistered: %s\n", key)
}

// UnregisterAll stops and removes every subscription. Called at logout
// so no listener outlives the session boundary.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	stops := make([]func(), 0, len(r.active))
	for _, e := range r.active {
		if e.stop != nil {
			stops = append(stops, e.stop)
		}
	}
	count := len(r.active)
	r.active = make(map[string]entry)
	r.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	log.Printf("All listeners unregistered (%d total)\n", count)
}

// Has reports whether a subscription is live under key.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}

// Count returns the number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
