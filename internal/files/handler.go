package files

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	mw "github.com/banterhq/banter/internal/middleware"
)

// Handler accepts multipart uploads, stores the file on disk under a unique
// name, and records it so the client can link it into messages.
type Handler struct {
	db       *sql.DB
	dir      string
	maxBytes int64
}

func NewHandler(db *sql.DB, dir string, maxBytes int64) (*Handler, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Handler{db: db, dir: dir, maxBytes: maxBytes}, nil
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	// The original name is kept for display only; the stored name is ours.
	storedName := fmt.Sprintf("%d-%s%s",
		time.Now().UnixMilli(), uuid.NewString(), filepath.Ext(header.Filename))

	dst, err := os.Create(filepath.Join(h.dir, storedName))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(dst.Name())
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id := uuid.NewString()
	channelID := r.FormValue("channel_id")
	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO files (id, filename, stored_name, mime_type, size, uploader_id, channel_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, header.Filename, storedName, mimeType, size, mw.GetUserID(r.Context()), nullable(channelID))
	if err != nil {
		os.Remove(dst.Name())
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"id":       id,
		"filename": header.Filename,
		"url":      "/uploads/" + storedName,
		"type":     mimeType,
		"size":     size,
	})
}

// Serve exposes the upload directory read-only under /uploads/.
func (h *Handler) Serve() http.Handler {
	return http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.dir)))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
