package hub

import "log/slog"

// RelayKind is a signaling message type relayed verbatim between two peers.
type RelayKind string

const (
	RelayOffer        RelayKind = RelayKind(EventOffer)
	RelayAnswer       RelayKind = RelayKind(EventAnswer)
	RelayICECandidate RelayKind = RelayKind(EventICECandidate)
	RelayVideoToggle  RelayKind = RelayKind(EventVideoToggle)
)

// PeerInfo identifies a connection's user in call and room notifications.
type PeerInfo struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Avatar       string `json:"avatar"`
	ConnectionID string `json:"connection_id"`
}

func peerInfo(c *Connection) PeerInfo {
	return PeerInfo{
		UserID:       c.UserID,
		Username:     c.Username,
		Avatar:       c.Avatar,
		ConnectionID: c.ID,
	}
}

// Coordinator owns the three realtime tables and drives every state
// transition on them: presence, voice room membership, one-to-one call
// lifecycle, and the point-to-point signaling relay.
//
// It is transport-free (delivery goes through the Sender, liveness through
// the Registry), so the whole call/room state machine is testable without a
// WebSocket in sight.
type Coordinator struct {
	registry *Registry
	rooms    *RoomTable
	calls    *CallTable
	sender   Sender
}

func NewCoordinator(sender Sender) *Coordinator {
	return &Coordinator{
		registry: NewRegistry(),
		rooms:    NewRoomTable(),
		calls:    NewCallTable(),
		sender:   sender,
	}
}

func (co *Coordinator) Registry() *Registry { return co.registry }
func (co *Coordinator) Rooms() *RoomTable   { return co.rooms }
func (co *Coordinator) Calls() *CallTable   { return co.calls }

// send delivers evt to connID if it is still registered. A vanished target is
// not an error: ephemeral signaling is lossy by contract.
func (co *Coordinator) send(connID string, evt Envelope) bool {
	if co.registry.Find(connID) == nil {
		return false
	}
	return co.sender.Send(connID, evt)
}

func (co *Coordinator) broadcastPresence() {
	co.sender.Broadcast(Envelope{
		Type:    EventPresenceUpdate,
		Payload: co.registry.Snapshot(),
	})
}

// Connect admits an authenticated connection and announces the new presence
// list to everyone.
func (co *Coordinator) Connect(c *Connection) {
	co.registry.Admit(c)
	slog.Info("client connected", "conn_id", c.ID, "user_id", c.UserID)
	co.broadcastPresence()
}

// Disconnect runs the full teardown for a closed connection: call, rooms,
// registry, in that order, unconditionally. Each step must happen even if an
// earlier one found nothing to do, or a stale reference survives forever.
func (co *Coordinator) Disconnect(connID string) {
	if peer, state, ok := co.calls.Unpair(connID); ok {
		// The peer only ever learned about an accepted call; a pending ring is
		// resolved by the caller's own client-side timeout.
		if state == CallActive {
			co.send(peer, Envelope{
				Type:    EventCallEnded,
				Payload: map[string]any{"from": connID},
			})
		}
	}

	for _, room := range co.rooms.RemoveAll(connID) {
		co.notifyRoomLeft(room, connID)
	}

	if c := co.registry.Remove(connID); c != nil {
		slog.Info("client disconnected", "conn_id", connID, "user_id", c.UserID)
		co.broadcastPresence()
	}
}

// ---- Voice rooms ---------------------------------------------------------

// JoinRoom adds connID to room, tells the members that were already there
// about the newcomer, and only then hands the joiner its members snapshot.
// That ordering keeps the joiner's peer-connection setup from racing the
// joined broadcast and double-creating peers.
func (co *Coordinator) JoinRoom(room, connID string) {
	c := co.registry.Find(connID)
	if c == nil {
		return
	}

	existing := co.rooms.Join(room, connID)

	joined := Envelope{
		Type: EventRoomMemberJoin,
		Payload: map[string]any{
			"room":          room,
			"connection_id": c.ID,
			"user_id":       c.UserID,
			"username":      c.Username,
			"avatar":        c.Avatar,
		},
	}
	members := make([]PeerInfo, 0, len(existing))
	for _, id := range existing {
		member := co.registry.Find(id)
		if member == nil {
			continue
		}
		co.send(id, joined)
		members = append(members, peerInfo(member))
	}

	co.send(connID, Envelope{
		Type: EventRoomMembers,
		Payload: map[string]any{
			"room":    room,
			"members": members,
		},
	})
}

// LeaveRoom removes connID from room and tells the remaining members.
// Leaving a room the connection never joined is a no-op.
func (co *Coordinator) LeaveRoom(room, connID string) {
	if !co.rooms.Leave(room, connID) {
		return
	}
	co.notifyRoomLeft(room, connID)
}

func (co *Coordinator) notifyRoomLeft(room, connID string) {
	left := Envelope{
		Type: EventRoomMemberLeft,
		Payload: map[string]any{
			"room":          room,
			"connection_id": connID,
		},
	}
	for _, id := range co.rooms.Members(room) {
		co.send(id, left)
	}
}

// ---- One-to-one calls ----------------------------------------------------

// Initiate starts a call from callerConnID to some live connection of
// toUserID. If the user has no live connection the caller gets an immediate
// rejected signal and nothing else happens.
func (co *Coordinator) Initiate(callerConnID, toUserID, mediaType string) {
	caller := co.registry.Find(callerConnID)
	if caller == nil {
		return
	}

	callee := co.registry.FindByUser(toUserID)
	if callee == nil {
		co.send(callerConnID, Envelope{
			Type:    EventCallRejected,
			Payload: map[string]any{"message": "recipient offline"},
		})
		return
	}

	co.calls.Ring(callerConnID, callee.ID)
	co.send(callee.ID, Envelope{
		Type: EventIncomingCall,
		Payload: map[string]any{
			"from":       peerInfo(caller),
			"media_type": mediaType,
		},
	})
}

// Accept resolves a ring: the callee at calleeConnID takes the call from
// callerConnID. The caller is notified first, then the pairing is recorded.
// A caller that vanished in between simply never hears the acceptance; the
// callee's own teardown removes the pairing later.
func (co *Coordinator) Accept(calleeConnID, callerConnID string) {
	callee := co.registry.Find(calleeConnID)
	if callee == nil {
		return
	}

	co.send(callerConnID, Envelope{
		Type:    EventCallAccepted,
		Payload: map[string]any{"from": peerInfo(callee)},
	})
	co.calls.Pair(calleeConnID, callerConnID)
}

// Reject declines a ring and tells the caller. No pairing was ever created,
// so there is nothing to tear down beyond the ring bookkeeping.
func (co *Coordinator) Reject(calleeConnID, callerConnID string) {
	co.calls.ClearRing(calleeConnID)
	co.send(callerConnID, Envelope{
		Type: EventCallRejected,
		Payload: map[string]any{
			"from":    calleeConnID,
			"message": "call was declined",
		},
	})
}

// End hangs up connID's side of a call. The peer named by the client is
// notified if still around; the pairing goes away regardless.
func (co *Coordinator) End(connID, peerConnID string) {
	if peerConnID != "" {
		co.send(peerConnID, Envelope{
			Type:    EventCallEnded,
			Payload: map[string]any{"from": connID},
		})
	}
	co.calls.Unpair(connID)
}

// ---- Signaling relay -----------------------------------------------------

// Relay forwards a signaling payload from one connection to another. Returns
// false when the target is gone; the message is dropped silently, with no
// retry and no buffering.
func (co *Coordinator) Relay(kind RelayKind, fromConnID, toConnID string, payload map[string]any) bool {
	if co.registry.Find(toConnID) == nil {
		return false
	}

	body := map[string]any{"from": fromConnID}
	for k, v := range payload {
		body[k] = v
	}
	return co.sender.Send(toConnID, Envelope{Type: EventType(kind), Payload: body})
}

// ---- Presence-adjacent fan-out -------------------------------------------

// VoiceActivity tells every other client whether connID's user is speaking.
func (co *Coordinator) VoiceActivity(connID string, speaking bool) {
	c := co.registry.Find(connID)
	if c == nil {
		return
	}
	evt := Envelope{
		Type: EventUserSpeaking,
		Payload: map[string]any{
			"user_id":  c.UserID,
			"speaking": speaking,
		},
	}
	for _, entry := range co.registry.Snapshot() {
		if entry.ConnectionID == connID {
			continue
		}
		co.send(entry.ConnectionID, evt)
	}
}

// NotifyUser delivers evt to the user's most recent connection. Used for
// user-addressed pings like friend requests.
func (co *Coordinator) NotifyUser(userID string, evt Envelope) bool {
	c := co.registry.FindByUser(userID)
	if c == nil {
		return false
	}
	return co.send(c.ID, evt)
}

// SendToConn delivers evt to one connection if it is still live.
func (co *Coordinator) SendToConn(connID string, evt Envelope) bool {
	return co.send(connID, evt)
}

// Broadcast delivers evt to every connected client.
func (co *Coordinator) Broadcast(evt Envelope) {
	co.sender.Broadcast(evt)
}

// RenameUser refreshes the registry's view of a user after a profile update
// and fans the change out to all clients.
func (co *Coordinator) RenameUser(userID, username, avatar string) {
	if !co.registry.Rename(userID, username, avatar) {
		return
	}
	co.sender.Broadcast(Envelope{
		Type: EventUserRenamed,
		Payload: map[string]any{
			"user_id":  userID,
			"username": username,
			"avatar":   avatar,
		},
	})
	co.broadcastPresence()
}
