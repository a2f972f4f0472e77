package friends

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/banterhq/banter/internal/hub"
	mw "github.com/banterhq/banter/internal/middleware"
)

// Handler wires HTTP requests to the friends Service. A freshly delivered
// request pings the target's live connection through the coordinator.
type Handler struct {
	svc   *Service
	coord *hub.Coordinator
}

func NewHandler(svc *Service, coord *hub.Coordinator) *Handler {
	return &Handler{svc: svc, coord: coord}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Friends(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get friends")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Pending(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get pending requests")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	friendID, ok := h.friendIDFromBody(w, r)
	if !ok {
		return
	}

	created, err := h.svc.SendRequest(r.Context(), mw.GetUserID(r.Context()), friendID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to send friend request")
		return
	}
	if created && h.coord != nil {
		h.coord.NotifyUser(friendID, hub.Envelope{Type: hub.EventFriendRequest})
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	friendID, ok := h.friendIDFromBody(w, r)
	if !ok {
		return
	}
	if err := h.svc.Accept(r.Context(), mw.GetUserID(r.Context()), friendID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to accept friend request")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	friendID, ok := h.friendIDFromBody(w, r)
	if !ok {
		return
	}
	if err := h.svc.Reject(r.Context(), mw.GetUserID(r.Context()), friendID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reject friend request")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendID")
	if err := h.svc.Remove(r.Context(), mw.GetUserID(r.Context()), friendID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove friend")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) friendIDFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body struct {
		FriendID string `json:"friend_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FriendID == "" {
		writeError(w, http.StatusBadRequest, "friend_id required")
		return "", false
	}
	return body.FriendID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
