package hub

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banterhq/banter/internal/groups"
	"github.com/banterhq/banter/internal/messages"
)

// StatusStore records a user's online/offline status. Implemented by the
// users service; kept as an interface here so the hub does not depend on it.
type StatusStore interface {
	SetStatus(ctx context.Context, userID, status string) error
}

// Identity is the authenticated claim a connection carries after handshake.
// The hub trusts it once admitted; validation happens at the transport edge.
type Identity struct {
	UserID   string
	Username string
	Avatar   string
}

// Hub owns the WebSocket transport: upgrading connections, tracking attached
// clients, and delivering envelopes. All realtime state transitions live in
// the Coordinator; the hub is its Sender.
//
// The client map is touched from every readPump goroutine, so it sits behind
// its own lock, separate from the coordinator's table locks.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client // connection ID → client

	coord  *Coordinator
	status StatusStore

	chat   *messages.Service
	groups *groups.Service
}

func NewHub(domain string, chat *messages.Service, groupSvc *groups.Service, status StatusStore) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		status:  status,
		chat:    chat,
		groups:  groupSvc,
	}
	h.coord = NewCoordinator(h)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     makeCheckOrigin(domain),
	}
	return h
}

// Coordinator exposes the realtime core for HTTP handlers that fan out
// notifications (friend requests, profile renames).
func (h *Hub) Coordinator() *Coordinator { return h.coord }

// makeCheckOrigin returns a gorilla/websocket CheckOrigin function that allows
// upgrades only from origins whose hostname matches the configured domain.
//
// Rules:
//   - Empty domain → allow all origins and log a one-time startup warning.
//   - Matching domain hostname → allowed.
//   - localhost / 127.0.0.1 → always allowed so the Electron desktop shell
//     and local dev tooling work regardless of domain config.
//   - Origin: null → allowed (Electron sends this when loading via file://).
//   - Missing Origin header → allowed (non-browser / native clients).
//   - Anything else → rejected with a Warn-level log entry.
func makeCheckOrigin(domain string) func(*http.Request) bool {
	if domain == "" {
		slog.Warn("BANTER_DOMAIN is not set; WebSocket origin check is disabled, set it in production")
		return func(r *http.Request) bool { return true }
	}

	allowed := normaliseHost(domain)

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// No header: non-browser client. Allow.
		if origin == "" {
			return true
		}

		// Electron windows loaded from file:// report an opaque origin.
		if origin == "null" {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			slog.Warn("ws upgrade rejected: malformed Origin header", "origin", origin)
			return false
		}

		host := normaliseHost(u.Hostname())
		if host == allowed {
			return true
		}
		if host == "localhost" || host == "127.0.0.1" {
			return true
		}

		slog.Warn("ws upgrade rejected: origin not allowed",
			"origin", origin,
			"allowed_domain", allowed,
		)
		return false
	}
}

// normaliseHost strips an optional scheme and port from a host string and
// lowercases the result, making it safe to compare against BANTER_DOMAIN
// regardless of how the operator wrote it.
func normaliseHost(h string) string {
	h = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(h), "https://"), "http://")
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return h
}

// ServeWS upgrades an HTTP connection to WebSocket, admits the connection
// into the registry, and starts its pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, id Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newClient(h, conn, uuid.NewString(), id)

	h.mu.Lock()
	h.clients[c.ConnID] = c
	h.mu.Unlock()

	h.coord.Connect(&Connection{
		ID:       c.ConnID,
		UserID:   id.UserID,
		Username: id.Username,
		Avatar:   id.Avatar,
	})
	h.setStatus(id.UserID, "Online")

	go c.writePump()
	go c.readPump()
}

// drop detaches a client and tears down its realtime state. Safe to call more
// than once for the same client.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.ConnID]
	if ok && current == c {
		delete(h.clients, c.ConnID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.coord.Disconnect(c.ConnID)
	c.closeSend()
	h.setStatus(c.UserID, "Offline")
}

// setStatus persists presence status off the hot path. Failures are logged
// and otherwise ignored; status is advisory.
func (h *Hub) setStatus(userID, status string) {
	if h.status == nil {
		return
	}
	go func() {
		if err := h.status.SetStatus(context.Background(), userID, status); err != nil {
			slog.Warn("update user status", "user_id", userID, "status", status, "err", err)
		}
	}()
}

// Send implements Sender: deliver one envelope to one attached connection.
func (h *Hub) Send(connID string, evt Envelope) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.sendEvent(evt)
}

// Broadcast implements Sender: deliver an envelope to every attached client.
func (h *Hub) Broadcast(evt Envelope) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.sendEvent(evt)
	}
}
