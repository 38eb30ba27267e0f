package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reciclo/broker/internal/blob"
)

const maxUploadSize = 10 << 20 // 10 MB

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"text/plain":      true,
}

// UploadRequirementDoc handles POST /requirements/{id}/documents/{clause}:
// the attachment side of a quality or logistics document. The returned key
// goes into the requirement payload; a reference URL is the mutually
// exclusive alternative.
func (h *Handlers) UploadRequirementDoc(w http.ResponseWriter, r *http.Request) {
	clause := chi.URLParam(r, "clause")
	if clause != "quality" && clause != "logistics" {
		writeErrorStatus(w, http.StatusBadRequest, "clause must be quality or logistics")
		return
	}
	key, ok := h.storeUpload(w, r, func(filename string) string {
		return blob.RequirementDocKey(chi.URLParam(r, "id"), clause, filename)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// UploadOfferPhoto handles POST /offers/{id}/photos.
func (h *Handlers) UploadOfferPhoto(w http.ResponseWriter, r *http.Request) {
	key, ok := h.storeUpload(w, r, func(filename string) string {
		return blob.OfferPhotoKey(chi.URLParam(r, "id"), filename)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// storeUpload reads one multipart file and stores it under the built key.
// It writes the error response itself when the upload fails.
func (h *Handlers) storeUpload(w http.ResponseWriter, r *http.Request, keyFor func(filename string) string) (string, bool) {
	if h.blobs == nil {
		slog.Error("attachment upload attempted but blob storage not configured")
		writeErrorStatus(w, http.StatusServiceUnavailable, "attachment storage is not configured")
		return "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "file too large (max 10 MB)")
		return "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "no file uploaded")
		return "", false
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !allowedContentTypes[contentType] {
		writeErrorStatus(w, http.StatusBadRequest, "unsupported file type")
		return "", false
	}

	key := keyFor(header.Filename)
	if err := h.blobs.Upload(r.Context(), key, file, contentType); err != nil {
		slog.Error("attachment upload failed", "key", key, "error", err)
		writeErrorStatus(w, http.StatusInternalServerError, "upload failed")
		return "", false
	}
	return key, true
}

// DownloadAttachment handles GET /attachments?key=.
func (h *Handlers) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeErrorStatus(w, http.StatusServiceUnavailable, "attachment storage is not configured")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" || strings.Contains(key, "..") {
		writeErrorStatus(w, http.StatusBadRequest, "a valid key is required")
		return
	}
	body, err := h.blobs.Download(r.Context(), key)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "attachment not found")
		return
	}
	defer body.Close()
	if _, err := io.Copy(w, body); err != nil {
		slog.Error("attachment download failed", "key", key, "error", err)
	}
}
