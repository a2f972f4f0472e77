package hub

import (
	"sync"
	"time"
)

// Connection is one live authenticated WebSocket session. A user may hold
// several simultaneously (multi-device); each gets its own Connection.
type Connection struct {
	ID       string
	UserID   string
	Username string
	Avatar   string
	JoinedAt time.Time

	seq uint64 // admission order, for deterministic iteration and most-recent pick
}

// PresenceEntry is one element of the presence-update payload.
type PresenceEntry struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Avatar       string `json:"avatar"`
	ConnectionID string `json:"connection_id"`
}

// Registry maps connection IDs to their authenticated sessions.
// Safe for concurrent use from the per-connection read goroutines.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	byUser  map[string][]*Connection // admission order per user
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		byUser: make(map[string][]*Connection),
	}
}

// Admit records a freshly authenticated connection.
func (r *Registry) Admit(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	c.seq = r.nextSeq
	if c.JoinedAt.IsZero() {
		c.JoinedAt = time.Now()
	}
	r.conns[c.ID] = c
	r.byUser[c.UserID] = append(r.byUser[c.UserID], c)
}

// Remove deletes the connection and returns its record, or nil if unknown.
func (r *Registry) Remove(connID string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)

	conns := r.byUser[c.UserID]
	filtered := conns[:0]
	for _, other := range conns {
		if other != c {
			filtered = append(filtered, other)
		}
	}
	if len(filtered) == 0 {
		delete(r.byUser, c.UserID)
	} else {
		r.byUser[c.UserID] = filtered
	}
	return c
}

// Find returns a copy of the connection record for connID, or nil. Callers
// get a snapshot: the stored record can be renamed concurrently, so it never
// leaves the lock.
func (r *Registry) Find(connID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// FindByUser returns a copy of the user's most recently admitted connection,
// or nil. A user with several devices gets exactly one pick; most-recent
// keeps the choice deterministic.
func (r *Registry) FindByUser(userID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	cp := *conns[len(conns)-1]
	return &cp
}

// Rename updates the username/avatar on every live connection of userID and
// reports whether any connection was touched.
func (r *Registry) Rename(userID, username, avatar string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byUser[userID]
	for _, c := range conns {
		c.Username = username
		c.Avatar = avatar
	}
	return len(conns) > 0
}

// Snapshot returns the presence list in admission order.
func (r *Registry) Snapshot() []PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PresenceEntry, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, PresenceEntry{
			UserID:       c.UserID,
			Username:     c.Username,
			Avatar:       c.Avatar,
			ConnectionID: c.ID,
		})
	}
	// conns is a map; restore admission order.
	sortPresence(out, r.seqOf)
	return out
}

func (r *Registry) seqOf(connID string) uint64 {
	if c, ok := r.conns[connID]; ok {
		return c.seq
	}
	return 0
}

func sortPresence(entries []PresenceEntry, seq func(string) uint64) {
	// Insertion sort; presence lists are small.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && seq(entries[j].ConnectionID) < seq(entries[j-1].ConnectionID); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
