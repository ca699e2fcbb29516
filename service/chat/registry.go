package chat

import (
	"sync"
	"time"
)

// Entry is one user's currently-live connection.
type Entry struct {
	UserID      string
	ConnID      string
	ConnectedAt time.Time
	LastActive  time.Time // refreshed by inbound frames and pongs
	ClientMeta  string    // diagnostic only (user-agent etc.)

	client *Client
}

// Registry maps user -> live connection. At most one entry per user: a
// second Register for the same user replaces the first and the replaced
// connection is handed back to the caller to be force-closed.
//
// Exclusively mutated by the gateway and the reaper; the dispatcher only
// reads. Guarded by a mutex because gorilla runs one goroutine per
// connection.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Entry
	clock  func() time.Time // injectable for tests; nil => time.Now
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(nil)
}

func NewRegistryWithClock(clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		byUser: make(map[string]*Entry),
		clock:  clock,
	}
}

// Register inserts or replaces the entry for user. The replaced client (if
// any, and if it is a different connection) is returned so the caller can
// signal it to close; last-registered-wins by design.
func (r *Registry) Register(user, connID, meta string, c *Client) (replaced *Client) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[user]; ok && prev.ConnID != connID {
		replaced = prev.client
	}
	r.byUser[user] = &Entry{
		UserID:      user,
		ConnID:      connID,
		ConnectedAt: now,
		LastActive:  now,
		ClientMeta:  meta,
		client:      c,
	}
	return replaced
}

// Unregister removes the entry only when the stored connection id matches,
// so a stale close handler from an already-replaced connection cannot remove
// the newer entry. Mismatch is a no-op, not an error.
func (r *Registry) Unregister(user, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byUser[user]
	if !ok || e.ConnID != connID {
		return false
	}
	delete(r.byUser, user)
	return true
}

// Lookup returns the live client for user, if registered.
func (r *Registry) Lookup(user string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUser[user]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Touch refreshes the activity time of the matching entry (heartbeat).
func (r *Registry) Touch(user, connID string) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byUser[user]; ok && e.ConnID == connID {
		e.LastActive = now
	}
}

// Snapshot returns all currently-registered user ids.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	return out
}

// EntriesOlderThan returns entries idle for longer than d. Decision only;
// closing the connections is the reaper's job.
func (r *Registry) EntriesOlderThan(d time.Duration) []*Entry {
	cutoff := r.clock().Add(-d)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.byUser {
		if e.LastActive.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// clients returns every registered client (for broadcasts).
func (r *Registry) clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byUser))
	for _, e := range r.byUser {
		if e.client != nil {
			out = append(out, e.client)
		}
	}
	return out
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
