package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536 // SDP offers with many candidates run large
)

// Client represents a single active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	ConnID   string
	UserID   string
	Username string
	Avatar   string

	sendMu sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, connID string, id Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		ConnID:   connID,
		UserID:   id.UserID,
		Username: id.Username,
		Avatar:   id.Avatar,
		send:     make(chan []byte, 256),
	}
}

// readPump pumps messages from the WebSocket connection into the dispatcher.
// Each client runs exactly one readPump goroutine; it owns teardown.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("ws read error", "conn_id", c.ConnID, "err", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump pumps queued messages out to the WebSocket connection.
// Each client runs exactly one writePump goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent marshals an Envelope and queues it for delivery. A client whose
// send buffer is full is dropped; a reader that slow cannot keep up with
// signaling anyway.
func (c *Client) sendEvent(evt Envelope) bool {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal event", "err", err)
		return false
	}

	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return false
	}
	select {
	case c.send <- data:
		c.sendMu.Unlock()
		return true
	default:
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		go c.hub.drop(c)
		return false
	}
}

// closeSend shuts the outbound queue exactly once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
