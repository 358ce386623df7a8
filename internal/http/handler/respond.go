package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pinned/internal/board"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps board service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, board.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, board.ErrForbidden), errors.Is(err, board.ErrNotDuplicable):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, board.ErrTitleRequired):
		http.Error(w, "title required", http.StatusBadRequest)
	case errors.Is(err, board.ErrInvalidTile):
		http.Error(w, "invalid tile type", http.StatusBadRequest)
	case errors.Is(err, board.ErrTypeImmutable):
		http.Error(w, "tile type cannot change", http.StatusBadRequest)
	case errors.Is(err, board.ErrInvalidBoard):
		http.Error(w, "invalid board", http.StatusBadRequest)
	default:
		if log != nil {
			log.Error("service error", zap.Error(err))
		}
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
