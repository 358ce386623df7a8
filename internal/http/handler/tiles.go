package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pinned/internal/api"
	"pinned/internal/auth"
	"pinned/internal/board"
)

type TileHandler struct {
	Svc *board.Service
	Log *zap.Logger
}

func (h *TileHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	rows, err := h.Svc.ListTiles(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	out := make([]api.Tile, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].API())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	t, err := h.Svc.GetTile(r.Context(), uid, chi.URLParam(r, "id"), chi.URLParam(r, "tileID"))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t.API())
}

func (h *TileHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req api.TileInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	t, err := h.Svc.CreateTile(r.Context(), uid, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t.API())
}

func (h *TileHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	// boardId in the body is ignored: a tile never moves between boards
	var req api.TilePatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	t, err := h.Svc.UpdateTile(r.Context(), uid, chi.URLParam(r, "id"), chi.URLParam(r, "tileID"), req)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t.API())
}

func (h *TileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Svc.DeleteTile(r.Context(), uid, chi.URLParam(r, "id"), chi.URLParam(r, "tileID")); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
