// Package server tracks room membership for live connections via the
// Registry type, an explicit mapping guarded by a mutex rather than ad hoc
// state on the connection itself.
package server

import "sync"

// membership records which room a connection belongs to and the display name
// it joined with. Entries are replaced wholesale on every join.
type membership struct {
	room     string
	username *string
}

// Registry maps each live client to its current membership. Rooms are
// implicit string labels; joining never validates that a room exists and a
// room disappears when its last member leaves.
type Registry struct {
	mu      sync.RWMutex
	members map[*Client]membership
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[*Client]membership),
	}
}

// Join records c as a member of room under username, unconditionally
// overwriting any previous membership. It always succeeds.
func (r *Registry) Join(c *Client, room string, username *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[c] = membership{room: room, username: username}
}

// Membership reports c's current room and display name. joined is false when
// the connection never joined a room; username may be nil even when joined.
func (r *Registry) Membership(c *Client) (room string, username *string, joined bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[c]
	return m.room, m.username, ok
}

// Leave discards c's membership. Other room members are not notified.
func (r *Registry) Leave(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, c)
}
