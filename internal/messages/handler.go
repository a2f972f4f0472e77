package messages

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/banterhq/banter/internal/middleware"
)

// Handler serves message history. Writes go through the WebSocket ops; HTTP
// only reads.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListChannel returns a channel's recent messages.
func (h *Handler) ListChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	msgs, err := h.svc.ListChannelMessages(r.Context(), channelID, 100)
	if err != nil {
		http.Error(w, `{"error":"failed to load messages"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, msgs)
}

// ListDM returns the direct-message history between the caller and another user.
func (h *Handler) ListDM(w http.ResponseWriter, r *http.Request) {
	callerID := mw.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")
	msgs, err := h.svc.ListConversation(r.Context(), callerID, otherID, 100)
	if err != nil {
		http.Error(w, `{"error":"failed to load messages"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, msgs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
