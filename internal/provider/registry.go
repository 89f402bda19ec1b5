package provider

import (
	"sync"

	"github.com/sydlexius/driftwood/internal/media"
)

// Registry holds all configured provider clients keyed by instance id.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	clients map[string]Client
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

// Register adds a client to the registry.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := c.InstanceID()
	if _, ok := r.clients[id]; !ok {
		r.order = append(r.order, id)
	}
	r.clients[id] = c
}

// Get returns a client by instance id, or nil if not registered. Callers
// doing listing fetches must treat nil as an empty result, not an error:
// a mapping can outlive the provider instance it was created from.
func (r *Registry) Get(instanceID string) Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[instanceID]
}

// All returns all registered clients in registration order.
func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out
}

// ForMediaType returns all clients supporting the given media type,
// in registration order.
func (r *Registry) ForMediaType(t media.Type) []Client {
	var out []Client
	for _, c := range r.All() {
		if c.SupportsMediaType(t) {
			out = append(out, c)
		}
	}
	return out
}
