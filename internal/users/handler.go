package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banterhq/banter/internal/hub"
	mw "github.com/banterhq/banter/internal/middleware"
)

// Handler wires HTTP requests to the users Service. Profile renames fan out
// through the realtime coordinator so connected clients update immediately.
type Handler struct {
	svc   *Service
	coord *hub.Coordinator
}

func NewHandler(svc *Service, coord *hub.Coordinator) *Handler {
	return &Handler{svc: svc, coord: coord}
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.FindByID(r.Context(), mw.GetUserID(r.Context()))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get users")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username        string `json:"username"`
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" && body.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	userID := mw.GetUserID(r.Context())
	user, err := h.svc.UpdateProfile(r.Context(), userID, ProfileUpdate{
		Username:        body.Username,
		CurrentPassword: body.CurrentPassword,
		NewPassword:     body.NewPassword,
	})
	switch {
	case errors.Is(err, ErrBadUsername), errors.Is(err, ErrBadPassword):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, ErrWrongPassword):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if body.Username != "" && h.coord != nil {
		h.coord.RenameUser(user.ID, user.Username, user.Avatar)
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
