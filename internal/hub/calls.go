package hub

import (
	"log/slog"
	"sync"
)

// CallState tags a call table entry. State is stored explicitly rather than
// inferred from entry presence so that a broken pairing can be detected and
// logged instead of silently mismatching.
type CallState int

const (
	// CallRinging: an invitation is out and neither side has answered.
	CallRinging CallState = iota + 1
	// CallActive: the callee accepted; media negotiation is under way or done.
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallActive:
		return "active"
	default:
		return "unknown"
	}
}

type callEntry struct {
	peer  string
	state CallState
}

// CallTable tracks one-to-one calls as symmetric connection pairings.
// If an entry A→B exists, B→A must exist with the same state. All exported
// methods are safe for concurrent use.
type CallTable struct {
	mu    sync.RWMutex
	calls map[string]callEntry
}

func NewCallTable() *CallTable {
	return &CallTable{calls: make(map[string]callEntry)}
}

// Ring records a pending invitation between caller and callee. If either side
// is already in the table the invitation is left untracked: it is still
// delivered by the coordinator, the table just cannot hold more than one call
// per connection. The invitation itself stays transient either way.
func (t *CallTable) Ring(caller, callee string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.calls[caller]; busy {
		return
	}
	if _, busy := t.calls[callee]; busy {
		return
	}
	t.calls[caller] = callEntry{peer: callee, state: CallRinging}
	t.calls[callee] = callEntry{peer: caller, state: CallRinging}
}

// Pair marks a and b as being in an active call with each other, setting both
// directions. Any prior entries for either side are overwritten.
func (t *CallTable) Pair(a, b string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[a] = callEntry{peer: b, state: CallActive}
	t.calls[b] = callEntry{peer: a, state: CallActive}
}

// Unpair removes both directions of id's pairing and returns the peer and the
// state the call was in. Returns ok=false if id had no entry; callers treat
// that as a no-op, not an error.
func (t *CallTable) Unpair(id string) (peer string, state CallState, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.calls[id]
	if !ok {
		return "", 0, false
	}
	delete(t.calls, id)

	reverse, exists := t.calls[entry.peer]
	if !exists || reverse.peer != id {
		// Symmetry invariant violated. A logic bug, not actionable by the
		// client; log it and finish the teardown.
		slog.Warn("call pairing out of sync",
			"conn_id", id,
			"peer", entry.peer,
			"state", entry.state.String(),
		)
		return entry.peer, entry.state, true
	}
	delete(t.calls, entry.peer)
	return entry.peer, entry.state, true
}

// Peer returns the connection id is currently paired or ringing with.
func (t *CallTable) Peer(id string) (peer string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.calls[id]
	return entry.peer, ok
}

// State returns the state of id's current call.
func (t *CallTable) State(id string) (CallState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.calls[id]
	return entry.state, ok
}

// ClearRing drops a pending invitation involving id, if one is tracked.
// Active pairings are left alone.
func (t *CallTable) ClearRing(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.calls[id]
	if !ok || entry.state != CallRinging {
		return
	}
	delete(t.calls, id)
	if reverse, ok := t.calls[entry.peer]; ok && reverse.peer == id && reverse.state == CallRinging {
		delete(t.calls, entry.peer)
	}
}
