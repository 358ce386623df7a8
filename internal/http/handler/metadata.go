package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pinned/internal/metadata"
)

type MetadataHandler struct {
	Fetcher *metadata.Fetcher
	Log     *zap.Logger
}

func (h *MetadataHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	m, err := h.Fetcher.Fetch(r.Context(), raw)
	if err != nil {
		if errors.Is(err, metadata.ErrInvalidURL) || errors.Is(err, metadata.ErrPrivateURL) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.Log.Warn("metadata fetch", zap.String("url", raw), zap.Error(err))
		http.Error(w, "failed to fetch metadata", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
