package hub

import (
	"context"
	"encoding/json"
	"log/slog"
)

// IncomingEnvelope is the wire format for client → server WebSocket messages.
type IncomingEnvelope struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"d"`
}

// Incoming op-codes sent by the client.
const (
	OpJoinVoiceRoom    = "join-voice-room"
	OpLeaveVoiceRoom   = "leave-voice-room"
	OpInitiateCall     = "initiate-call"
	OpAcceptCall       = "accept-call"
	OpRejectCall       = "reject-call"
	OpEndCall          = "end-call"
	OpOffer            = "offer"
	OpAnswer           = "answer"
	OpICECandidate     = "ice-candidate"
	OpVideoToggle      = "video-toggle"
	OpVoiceActivity    = "voice-activity"
	OpSendMessage      = "send-message"
	OpSendDM           = "send-dm"
	OpAddReaction      = "add-reaction"
	OpRemoveReaction   = "remove-reaction"
	OpSendGroupMessage = "send-group-message"
)

type incomingRoom struct {
	Room string `json:"room"`
}

type incomingInitiateCall struct {
	ToUserID  string `json:"to_user_id"`
	MediaType string `json:"media_type"` // audio | video
}

type incomingCallAction struct {
	To string `json:"to"` // peer connection ID
}

type incomingSignal struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"` // SDP string or RTCIceCandidate object
}

type incomingVideoToggle struct {
	To      string `json:"to"`
	Enabled bool   `json:"enabled"`
}

type incomingVoiceActivity struct {
	Speaking bool `json:"speaking"`
}

type incomingChannelMessage struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type incomingDM struct {
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

type incomingReaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type incomingGroupMessage struct {
	GroupID string `json:"group_id"`
	Text    string `json:"text"`
}

// handleMessage parses a raw WebSocket frame and dispatches to the matching
// handler. Runs synchronously on the readPump goroutine, so ops from one
// connection are handled in arrival order.
func (c *Client) handleMessage(raw []byte) {
	var msg IncomingEnvelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("ws bad message", "conn_id", c.ConnID, "err", err)
		return
	}

	co := c.hub.coord

	switch msg.Op {
	case OpJoinVoiceRoom:
		var p incomingRoom
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Room == "" {
			return
		}
		co.JoinRoom(p.Room, c.ConnID)

	case OpLeaveVoiceRoom:
		var p incomingRoom
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Room == "" {
			return
		}
		co.LeaveRoom(p.Room, c.ConnID)

	case OpInitiateCall:
		var p incomingInitiateCall
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ToUserID == "" {
			return
		}
		if p.MediaType != "video" {
			p.MediaType = "audio"
		}
		co.Initiate(c.ConnID, p.ToUserID, p.MediaType)

	case OpAcceptCall:
		var p incomingCallAction
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.To == "" {
			return
		}
		co.Accept(c.ConnID, p.To)

	case OpRejectCall:
		var p incomingCallAction
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.To == "" {
			return
		}
		co.Reject(c.ConnID, p.To)

	case OpEndCall:
		var p incomingCallAction
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		co.End(c.ConnID, p.To)

	case OpOffer, OpAnswer, OpICECandidate:
		var p incomingSignal
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.To == "" {
			return
		}
		co.Relay(RelayKind(msg.Op), c.ConnID, p.To, map[string]any{"payload": p.Payload})

	case OpVideoToggle:
		var p incomingVideoToggle
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.To == "" {
			return
		}
		co.Relay(RelayVideoToggle, c.ConnID, p.To, map[string]any{"enabled": p.Enabled})

	case OpVoiceActivity:
		var p incomingVoiceActivity
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		co.VoiceActivity(c.ConnID, p.Speaking)

	case OpSendMessage:
		c.handleSendMessage(msg.Payload)

	case OpSendDM:
		c.handleSendDM(msg.Payload)

	case OpAddReaction:
		c.handleReaction(msg.Payload, true)

	case OpRemoveReaction:
		c.handleReaction(msg.Payload, false)

	case OpSendGroupMessage:
		c.handleGroupMessage(msg.Payload)

	default:
		slog.Debug("ws unknown op", "op", msg.Op, "conn_id", c.ConnID)
	}
}

// handleSendMessage persists a channel message and broadcasts it to everyone.
//
//	{"op":"send-message","d":{"channel_id":"general","text":"hi"}}
func (c *Client) handleSendMessage(raw json.RawMessage) {
	var p incomingChannelMessage
	if err := json.Unmarshal(raw, &p); err != nil || p.ChannelID == "" || p.Text == "" {
		return
	}
	if c.hub.chat == nil {
		return
	}

	msg, err := c.hub.chat.CreateChannelMessage(context.Background(), p.ChannelID, c.UserID, p.Text)
	if err != nil {
		slog.Warn("persist channel message", "conn_id", c.ConnID, "err", err)
		return
	}

	c.hub.coord.Broadcast(Envelope{
		Type: EventNewMessage,
		Payload: map[string]any{
			"channel_id": p.ChannelID,
			"message":    msg,
		},
	})
}

// handleSendDM persists a direct message, delivers it to the receiver's most
// recent connection, and echoes it back to the sender.
func (c *Client) handleSendDM(raw json.RawMessage) {
	var p incomingDM
	if err := json.Unmarshal(raw, &p); err != nil || p.ReceiverID == "" || p.Text == "" {
		return
	}
	if c.hub.chat == nil {
		return
	}

	msg, err := c.hub.chat.CreateDM(context.Background(), c.UserID, p.ReceiverID, p.Text)
	if err != nil {
		slog.Warn("persist dm", "conn_id", c.ConnID, "err", err)
		return
	}

	c.hub.coord.NotifyUser(p.ReceiverID, Envelope{
		Type: EventNewDM,
		Payload: map[string]any{
			"sender_id": c.UserID,
			"message":   msg,
		},
	})
	c.hub.coord.SendToConn(c.ConnID, Envelope{
		Type: EventDMSent,
		Payload: map[string]any{
			"receiver_id": p.ReceiverID,
			"message":     msg,
		},
	})
}

// handleReaction adds or removes a reaction and broadcasts the message's full
// reaction set so clients replace rather than merge.
func (c *Client) handleReaction(raw json.RawMessage, add bool) {
	var p incomingReaction
	if err := json.Unmarshal(raw, &p); err != nil || p.MessageID == "" || p.Emoji == "" {
		return
	}
	if c.hub.chat == nil {
		return
	}

	ctx := context.Background()
	var err error
	if add {
		err = c.hub.chat.AddReaction(ctx, p.MessageID, c.UserID, p.Emoji)
	} else {
		err = c.hub.chat.RemoveReaction(ctx, p.MessageID, c.UserID, p.Emoji)
	}
	if err != nil {
		slog.Warn("update reaction", "conn_id", c.ConnID, "err", err)
		return
	}

	reactions, err := c.hub.chat.ReactionsFor(ctx, p.MessageID)
	if err != nil {
		slog.Warn("load reactions", "message_id", p.MessageID, "err", err)
		return
	}
	c.hub.coord.Broadcast(Envelope{
		Type: EventReactionUpdate,
		Payload: map[string]any{
			"message_id": p.MessageID,
			"reactions":  reactions,
		},
	})
}

// handleGroupMessage persists a group message and fans it out to every
// member's most recent connection. Non-members are ignored silently.
func (c *Client) handleGroupMessage(raw json.RawMessage) {
	var p incomingGroupMessage
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID == "" || p.Text == "" {
		return
	}
	if c.hub.groups == nil {
		return
	}

	ctx := context.Background()
	member, err := c.hub.groups.IsMember(ctx, p.GroupID, c.UserID)
	if err != nil || !member {
		return
	}

	msg, err := c.hub.groups.AddMessage(ctx, p.GroupID, c.UserID, p.Text)
	if err != nil {
		slog.Warn("persist group message", "group_id", p.GroupID, "err", err)
		return
	}

	members, err := c.hub.groups.Members(ctx, p.GroupID)
	if err != nil {
		slog.Warn("load group members", "group_id", p.GroupID, "err", err)
		return
	}

	evt := Envelope{Type: EventGroupMessage, Payload: msg}
	for _, m := range members {
		c.hub.coord.NotifyUser(m.ID, evt)
	}
}
