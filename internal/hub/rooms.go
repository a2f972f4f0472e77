package hub

import "sync"

// RoomTable tracks voice room membership by connection ID.
// All exported methods are safe for concurrent use from the per-connection
// read goroutines.
//
// Rooms are created lazily on first join and kept around when they empty
// out: the name space is bounded by the application's channel names, and a
// persistent entry matches how clients treat rooms as fixtures.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[string][]string // room name → member connection IDs, join order
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[string][]string)}
}

// Join adds connID to room and returns the members that were already present,
// in join order. Joining a room twice is a no-op and still returns the other
// members.
func (t *RoomTable) Join(room, connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	members := t.rooms[room]
	existing := make([]string, 0, len(members))
	already := false
	for _, id := range members {
		if id == connID {
			already = true
			continue
		}
		existing = append(existing, id)
	}
	if !already {
		t.rooms[room] = append(members, connID)
	}
	return existing
}

// Leave removes connID from room. Leaving a room the connection is not in is
// a no-op; the return value reports whether a membership was actually removed.
func (t *RoomTable) Leave(room, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remove(room, connID)
}

// RemoveAll removes connID from every room it occupies and returns the names
// of the rooms it left. Used for disconnect cleanup.
func (t *RoomTable) RemoveAll(connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var left []string
	for room := range t.rooms {
		if t.remove(room, connID) {
			left = append(left, room)
		}
	}
	return left
}

// Members returns a snapshot of room's member connection IDs in join order.
func (t *RoomTable) Members(room string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := t.rooms[room]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// remove expects t.mu held.
func (t *RoomTable) remove(room, connID string) bool {
	members, ok := t.rooms[room]
	if !ok {
		return false
	}
	for i, id := range members {
		if id == connID {
			t.rooms[room] = append(members[:i], members[i+1:]...)
			return true
		}
	}
	return false
}
