package hub

import (
	"sync"
	"testing"
)

type sentEvent struct {
	to  string
	evt Envelope
}

// fakeSender records deliveries instead of writing to sockets.
type fakeSender struct {
	mu         sync.Mutex
	sent       []sentEvent
	broadcasts []Envelope
}

func (f *fakeSender) Send(connID string, evt Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{to: connID, evt: evt})
	return true
}

func (f *fakeSender) Broadcast(evt Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, evt)
}

func (f *fakeSender) eventsTo(connID string, types ...EventType) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Envelope
	for _, s := range f.sent {
		if s.to != connID {
			continue
		}
		if len(types) == 0 {
			out = append(out, s.evt)
			continue
		}
		for _, typ := range types {
			if s.evt.Type == typ {
				out = append(out, s.evt)
				break
			}
		}
	}
	return out
}

func (f *fakeSender) countOfType(typ EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, s := range f.sent {
		if s.evt.Type == typ {
			n++
		}
	}
	return n
}

func newTestCoordinator() (*Coordinator, *fakeSender) {
	sender := &fakeSender{}
	return NewCoordinator(sender), sender
}

func payload(t *testing.T, evt Envelope) map[string]any {
	t.Helper()
	m, ok := evt.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload %T is not a map", evt.Payload)
	}
	return m
}

func TestCallFlow_InitiateAcceptEnd(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "7", Username: "alice"})
	co.Connect(&Connection{ID: "c2", UserID: "42", Username: "bob"})

	co.Initiate("c1", "42", "audio")

	incoming := sender.eventsTo("c2", EventIncomingCall)
	if len(incoming) != 1 {
		t.Fatalf("c2 got %d incoming-call events, want 1", len(incoming))
	}
	if got := sender.countOfType(EventIncomingCall); got != 1 {
		t.Fatalf("incoming-call went to %d connections, want exactly 1", got)
	}
	from := payload(t, incoming[0])["from"].(PeerInfo)
	if from.ConnectionID != "c1" || from.UserID != "7" {
		t.Fatalf("incoming-call from = %+v, want c1/7", from)
	}
	if mt := payload(t, incoming[0])["media_type"]; mt != "audio" {
		t.Fatalf("media_type = %v, want audio", mt)
	}

	co.Accept("c2", "c1")

	accepted := sender.eventsTo("c1", EventCallAccepted)
	if len(accepted) != 1 {
		t.Fatalf("c1 got %d call-accepted events, want 1", len(accepted))
	}
	if from := payload(t, accepted[0])["from"].(PeerInfo); from.ConnectionID != "c2" {
		t.Fatalf("call-accepted from = %+v, want c2", from)
	}
	if peer, ok := co.Calls().Peer("c1"); !ok || peer != "c2" {
		t.Fatalf("Peer(c1) = %q,%v, want c2,true", peer, ok)
	}
	if state, _ := co.Calls().State("c2"); state != CallActive {
		t.Fatalf("State(c2) = %v, want active", state)
	}

	co.End("c1", "c2")

	ended := sender.eventsTo("c2", EventCallEnded)
	if len(ended) != 1 {
		t.Fatalf("c2 got %d call-ended events, want 1", len(ended))
	}
	if from := payload(t, ended[0])["from"]; from != "c1" {
		t.Fatalf("call-ended from = %v, want c1", from)
	}
	if _, ok := co.Calls().Peer("c1"); ok {
		t.Fatal("pairing should be gone after end")
	}
	if _, ok := co.Calls().Peer("c2"); ok {
		t.Fatal("peer pairing should be gone after end")
	}
}

func TestInitiate_RecipientOffline(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "7", Username: "alice"})

	co.Initiate("c1", "42", "video")

	rejected := sender.eventsTo("c1", EventCallRejected)
	if len(rejected) != 1 {
		t.Fatalf("caller got %d call-rejected events, want 1", len(rejected))
	}
	if msg := payload(t, rejected[0])["message"]; msg != "recipient offline" {
		t.Fatalf("message = %v, want recipient offline", msg)
	}
	if got := sender.countOfType(EventIncomingCall); got != 0 {
		t.Fatalf("%d incoming-call events emitted, want 0", got)
	}
	if _, ok := co.Calls().Peer("c1"); ok {
		t.Fatal("no pairing should exist")
	}
}

func TestReject_NotifiesCallerAndClearsRing(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "7"})
	co.Connect(&Connection{ID: "c2", UserID: "42"})

	co.Initiate("c1", "42", "audio")
	co.Reject("c2", "c1")

	rejected := sender.eventsTo("c1", EventCallRejected)
	if len(rejected) != 1 {
		t.Fatalf("caller got %d call-rejected events, want 1", len(rejected))
	}
	if from := payload(t, rejected[0])["from"]; from != "c2" {
		t.Fatalf("call-rejected from = %v, want c2", from)
	}
	if _, ok := co.Calls().Peer("c1"); ok {
		t.Fatal("ring bookkeeping should be cleared")
	}
}

func TestRelay_DeliversWithSenderAttached(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "7"})
	co.Connect(&Connection{ID: "c2", UserID: "42"})

	if !co.Relay(RelayOffer, "c1", "c2", map[string]any{"payload": "sdp-blob"}) {
		t.Fatal("Relay to a live target should return true")
	}

	offers := sender.eventsTo("c2", EventOffer)
	if len(offers) != 1 {
		t.Fatalf("c2 got %d offers, want 1", len(offers))
	}
	p := payload(t, offers[0])
	if p["from"] != "c1" || p["payload"] != "sdp-blob" {
		t.Fatalf("offer payload = %v, want from=c1 payload=sdp-blob", p)
	}
}

func TestRelay_DeadTargetReturnsFalseSilently(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "7"})

	if co.Relay(RelayICECandidate, "c1", "gone", map[string]any{"payload": "cand"}) {
		t.Fatal("Relay to a dead target should return false")
	}
	if got := sender.countOfType(EventICECandidate); got != 0 {
		t.Fatalf("%d ice-candidate events emitted, want 0", got)
	}
}

func TestJoinRoom_OrderingAndSnapshot(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "1", Username: "alice"})
	co.Connect(&Connection{ID: "c2", UserID: "2", Username: "bob"})
	co.Connect(&Connection{ID: "c3", UserID: "3", Username: "carol"})

	co.JoinRoom("general", "c1")
	co.JoinRoom("general", "c2")
	co.JoinRoom("general", "c3")

	// c2's own snapshot lists exactly the member that was already there.
	snaps := sender.eventsTo("c2", EventRoomMembers)
	if len(snaps) != 1 {
		t.Fatalf("c2 got %d snapshots, want 1", len(snaps))
	}
	members := payload(t, snaps[0])["members"].([]PeerInfo)
	if len(members) != 1 || members[0].ConnectionID != "c1" {
		t.Fatalf("c2 snapshot members = %+v, want [c1]", members)
	}

	// c1 sees c2 join, then c3 join, in that order.
	joins := sender.eventsTo("c1", EventRoomMemberJoin)
	if len(joins) != 2 {
		t.Fatalf("c1 got %d member-joined events, want 2", len(joins))
	}
	if id := payload(t, joins[0])["connection_id"]; id != "c2" {
		t.Fatalf("first member-joined = %v, want c2", id)
	}
	if id := payload(t, joins[1])["connection_id"]; id != "c3" {
		t.Fatalf("second member-joined = %v, want c3", id)
	}

	// The joiner's snapshot never includes itself.
	for _, s := range sender.eventsTo("c3", EventRoomMembers) {
		for _, m := range payload(t, s)["members"].([]PeerInfo) {
			if m.ConnectionID == "c3" {
				t.Fatal("snapshot contains the joiner itself")
			}
		}
	}
}

func TestLeaveRoom_NotifiesRemaining(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "1"})
	co.Connect(&Connection{ID: "c2", UserID: "2"})
	co.JoinRoom("general", "c1")
	co.JoinRoom("general", "c2")

	co.LeaveRoom("general", "c1")

	left := sender.eventsTo("c2", EventRoomMemberLeft)
	if len(left) != 1 {
		t.Fatalf("c2 got %d member-left events, want 1", len(left))
	}
	if id := payload(t, left[0])["connection_id"]; id != "c1" {
		t.Fatalf("member-left connection_id = %v, want c1", id)
	}

	// Leaving a room it never joined emits nothing.
	before := sender.countOfType(EventRoomMemberLeft)
	co.LeaveRoom("music", "c2")
	if after := sender.countOfType(EventRoomMemberLeft); after != before {
		t.Fatal("leave of a non-member must not notify anyone")
	}
}

func TestDisconnect_CleansCallRoomAndPresenceExactlyOnce(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "1"})
	co.Connect(&Connection{ID: "c2", UserID: "2"})
	co.Connect(&Connection{ID: "c3", UserID: "3"})

	co.JoinRoom("general", "c2")
	co.JoinRoom("general", "c1")
	co.Initiate("c1", "3", "audio")
	co.Accept("c3", "c1")

	co.Disconnect("c1")

	if got := len(sender.eventsTo("c3", EventCallEnded)); got != 1 {
		t.Fatalf("c3 got %d call-ended events, want exactly 1", got)
	}
	if got := len(sender.eventsTo("c2", EventRoomMemberLeft)); got != 1 {
		t.Fatalf("c2 got %d member-left events, want exactly 1", got)
	}
	if co.Registry().Find("c1") != nil {
		t.Fatal("registry entry should be removed")
	}
	if _, ok := co.Calls().Peer("c3"); ok {
		t.Fatal("peer's pairing should be removed")
	}

	// The final presence broadcast no longer lists c1.
	sender.mu.Lock()
	last := sender.broadcasts[len(sender.broadcasts)-1]
	sender.mu.Unlock()
	if last.Type != EventPresenceUpdate {
		t.Fatalf("last broadcast = %s, want presence-update", last.Type)
	}
	for _, e := range last.Payload.([]PresenceEntry) {
		if e.ConnectionID == "c1" {
			t.Fatal("presence still lists the disconnected connection")
		}
	}
}

func TestEndCallThenDisconnect_NoDuplicateCallEnded(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "1"})
	co.Connect(&Connection{ID: "c2", UserID: "2"})

	co.Initiate("c1", "2", "audio")
	co.Accept("c2", "c1")

	co.End("c1", "c2")
	co.Disconnect("c1")

	if got := len(sender.eventsTo("c2", EventCallEnded)); got != 1 {
		t.Fatalf("c2 got %d call-ended events, want exactly 1", got)
	}
}

func TestDisconnect_DuringRingStaysSilent(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "1"})
	co.Connect(&Connection{ID: "c2", UserID: "2"})

	co.Initiate("c1", "2", "audio")
	co.Disconnect("c1")

	// The callee's client resolves the dangling ring by its own timeout; the
	// server never announces a call that was not yet accepted.
	if got := len(sender.eventsTo("c2", EventCallEnded)); got != 0 {
		t.Fatalf("c2 got %d call-ended events during ring, want 0", got)
	}
	if _, ok := co.Calls().Peer("c2"); ok {
		t.Fatal("ring bookkeeping should be cleared")
	}
}

func TestVoiceActivity_ExcludesSpeaker(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "1"})
	co.Connect(&Connection{ID: "c2", UserID: "2"})
	co.Connect(&Connection{ID: "c3", UserID: "3"})

	co.VoiceActivity("c1", true)

	if got := len(sender.eventsTo("c1", EventUserSpeaking)); got != 0 {
		t.Fatal("speaker must not hear its own activity event")
	}
	for _, id := range []string{"c2", "c3"} {
		evts := sender.eventsTo(id, EventUserSpeaking)
		if len(evts) != 1 {
			t.Fatalf("%s got %d user-speaking events, want 1", id, len(evts))
		}
		p := payload(t, evts[0])
		if p["user_id"] != "1" || p["speaking"] != true {
			t.Fatalf("user-speaking payload = %v", p)
		}
	}
}

func TestNotifyUser_PicksMostRecentConnection(t *testing.T) {
	co, sender := newTestCoordinator()
	co.Connect(&Connection{ID: "c1", UserID: "1"})
	co.Connect(&Connection{ID: "c2", UserID: "1"})

	if !co.NotifyUser("1", Envelope{Type: EventFriendRequest}) {
		t.Fatal("NotifyUser of an online user should succeed")
	}
	if got := len(sender.eventsTo("c2", EventFriendRequest)); got != 1 {
		t.Fatalf("most recent connection got %d events, want 1", got)
	}
	if got := len(sender.eventsTo("c1", EventFriendRequest)); got != 0 {
		t.Fatalf("older connection got %d events, want 0", got)
	}

	if co.NotifyUser("ghost", Envelope{Type: EventFriendRequest}) {
		t.Fatal("NotifyUser of an offline user should report false")
	}
}
