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

type BoardHandler struct {
	Svc *board.Service
	Log *zap.Logger
}

func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	rows, err := h.Svc.ListBoards(r.Context(), uid)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	out := make([]api.Board, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].API())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	b, err := h.Svc.GetBoard(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, b.API())
}

func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req api.BoardInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	b, err := h.Svc.CreateBoard(r.Context(), uid, req)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, b.API())
}

func (h *BoardHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req api.BoardInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	b, err := h.Svc.UpdateBoard(r.Context(), uid, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, b.API())
}

func (h *BoardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Svc.DeleteBoard(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	b, err := h.Svc.DuplicateBoard(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, b.API())
}
