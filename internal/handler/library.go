package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ratingRequest struct {
	Rating *int `json:"rating" validate:"required,gte=0,lte=5"`
}

type mutedRequest struct {
	Muted *bool `json:"muted" validate:"required"`
}

// GET /library
func (h *Handler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := h.sessions.Library(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.internalError(w, "library read failed", err)
		return
	}
	writeJSON(w, http.StatusOK, LibraryResponse{Success: true, Library: lib})
}

// POST /library/favorites
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	item, ok := h.readItem(w, r)
	if !ok {
		return
	}
	added, err := h.sessions.ToggleFavorite(r.Context(), SessionID(r.Context()), item)
	if err != nil {
		h.internalError(w, "favorite toggle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{Success: true, Added: added})
}

// POST /library/watched
func (h *Handler) ToggleWatched(w http.ResponseWriter, r *http.Request) {
	item, ok := h.readItem(w, r)
	if !ok {
		return
	}
	added, err := h.sessions.ToggleWatched(r.Context(), SessionID(r.Context()), item)
	if err != nil {
		h.internalError(w, "watched toggle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{Success: true, Added: added})
}

// POST /library/history
func (h *Handler) OpenExternal(w http.ResponseWriter, r *http.Request) {
	item, ok := h.readItem(w, r)
	if !ok {
		return
	}
	url, err := h.sessions.OpenExternal(r.Context(), SessionID(r.Context()), item)
	if err != nil {
		h.internalError(w, "history push failed", err)
		return
	}
	writeJSON(w, http.StatusOK, OpenResponse{Success: true, URL: url})
}

// PUT /library/ratings/{id}
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid id parameter")
		return
	}
	var req ratingRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "rating must be between 0 and 5")
		return
	}

	if err := h.sessions.Rate(r.Context(), SessionID(r.Context()), id, *req.Rating); err != nil {
		if errors.Is(err, domain.ErrInvalidRating) {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		h.internalError(w, "rating failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// PUT /library/muted
func (h *Handler) SetMuted(w http.ResponseWriter, r *http.Request) {
	var req mutedRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "muted flag is required")
		return
	}
	if err := h.sessions.SetMuted(r.Context(), SessionID(r.Context()), *req.Muted); err != nil {
		h.internalError(w, "mute update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sessions.Stats(r.Context())
	if err != nil {
		h.writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Success: true, Stats: stats})
}

// The body is a full item; only the id is required
func (h *Handler) readItem(w http.ResponseWriter, r *http.Request) (domain.Item, bool) {
	var item domain.Item
	if err := h.decodeBody(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid item body")
		return item, false
	}
	if err := h.validate.Var(item.ID, "gt=0"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "item id is required")
		return item, false
	}
	return item, true
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
