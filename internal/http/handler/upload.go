package handler

import (
	"bufio"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pinned/internal/imagehost"
)

// DefaultMaxUpload applies when UploadHandler.MaxBytes is unset.
const DefaultMaxUpload int64 = 5 << 20

type UploadHandler struct {
	Host     imagehost.Host
	MaxBytes int64
	Log      *zap.Logger
}

// Image accepts a multipart form with the file in field "image".
func (h *UploadHandler) Image(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxUpload
	}
	// room for the multipart envelope around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "no image uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > limit {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	declared := strings.ToLower(strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0]))
	br := bufio.NewReaderSize(file, 512)
	head, _ := br.Peek(512)
	if !isImage(declared, http.DetectContentType(head)) {
		http.Error(w, imagehost.ErrNotImage.Error(), http.StatusBadRequest)
		return
	}

	img, err := h.Host.Upload(r.Context(), declared, br)
	if err != nil {
		if errors.Is(err, imagehost.ErrNotImage) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.Log.Error("image upload", zap.Error(err))
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// isImage requires both the declared and the sniffed type to be images. SVG
// sniffs as text, so it is accepted when the content looks like markup.
func isImage(declared, sniffed string) bool {
	if !strings.HasPrefix(declared, "image/") {
		return false
	}
	if strings.HasPrefix(sniffed, "image/") {
		return true
	}
	return declared == "image/svg+xml" &&
		(strings.HasPrefix(sniffed, "text/xml") || strings.HasPrefix(sniffed, "text/plain"))
}
