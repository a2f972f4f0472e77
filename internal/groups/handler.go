package groups

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	mw "github.com/banterhq/banter/internal/middleware"
)

// Handler wires HTTP requests to the groups Service.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.ForUser(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load groups")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string   `json:"name"`
		MemberIDs []string `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 3 {
		writeError(w, http.StatusUnprocessableEntity, "group name too short")
		return
	}

	ownerID := mw.GetUserID(r.Context())
	group, err := h.svc.Create(r.Context(), body.Name, ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	for _, id := range body.MemberIDs {
		if err := h.svc.AddMember(r.Context(), group.ID, id); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to add member")
			return
		}
	}

	members, err := h.svc.Members(r.Context(), group.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"group":   group,
		"members": members,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	if !h.requireOwner(w, r, groupID) {
		return
	}
	if err := h.svc.Delete(r.Context(), groupID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	if !h.requireOwner(w, r, groupID) {
		return
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if err := h.svc.AddMember(r.Context(), groupID, body.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	members, err := h.svc.Members(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// RemoveMember: the owner can remove anyone; members can remove themselves.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	targetID := chi.URLParam(r, "userID")
	callerID := mw.GetUserID(r.Context())

	isOwner, err := h.svc.IsOwner(r.Context(), groupID, callerID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check ownership")
		return
	}
	if !isOwner && targetID != callerID {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	if err := h.svc.RemoveMember(r.Context(), groupID, targetID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	members, err := h.svc.Members(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Messages(r.Context(), chi.URLParam(r, "id"), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load group messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request, groupID string) bool {
	isOwner, err := h.svc.IsOwner(r.Context(), groupID, mw.GetUserID(r.Context()))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check ownership")
		return false
	}
	if !isOwner {
		writeError(w, http.StatusForbidden, "only the owner can do that")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
