package hub

// EventType represents a WebSocket event type sent from server to client.
type EventType string

const (
	EventPresenceUpdate EventType = "presence-update"
	EventRoomMembers    EventType = "voice-room-members"
	EventRoomMemberJoin EventType = "voice-room-member-joined"
	EventRoomMemberLeft EventType = "voice-room-member-left"
	EventIncomingCall   EventType = "incoming-call"
	EventCallAccepted   EventType = "call-accepted"
	EventCallRejected   EventType = "call-rejected"
	EventCallEnded      EventType = "call-ended"
	EventOffer          EventType = "offer"
	EventAnswer         EventType = "answer"
	EventICECandidate   EventType = "ice-candidate"
	EventVideoToggle    EventType = "video-toggle"
	EventUserSpeaking   EventType = "user-speaking"
	EventNewMessage     EventType = "new-message"
	EventNewDM          EventType = "new-dm"
	EventDMSent         EventType = "dm-sent"
	EventReactionUpdate EventType = "reaction-update"
	EventGroupMessage   EventType = "group-message"
	EventFriendRequest  EventType = "new-friend-request"
	EventUserRenamed    EventType = "user-renamed"
)

// Envelope is the wire format for all server → client WebSocket messages.
type Envelope struct {
	Type    EventType `json:"t"`
	Payload any       `json:"d"`
}

// Sender delivers envelopes to live connections. Implemented by Hub; tests
// substitute a recording fake.
type Sender interface {
	// Send queues evt for the given connection, returning false if the
	// connection is no longer attached to the transport.
	Send(connID string, evt Envelope) bool
	// Broadcast queues evt for every attached connection.
	Broadcast(evt Envelope)
}
