package handler

import (
	"errors"
	"net/http"

	"github.com/actuallystonmai/content-roulette/internal/domain"
)

// POST /roulette/draw
func (h *Handler) Draw(w http.ResponseWriter, r *http.Request) {
	p, err := h.parseContentParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	item, err := h.sessions.Draw(r.Context(), SessionID(r.Context()), p.selection())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ItemResponse{Success: true, Result: item})
	case errors.Is(err, domain.ErrDrawIgnored):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrNoContent),
		errors.Is(err, domain.ErrNoNewContent),
		errors.Is(err, domain.ErrActorNotFound):
		writeJSON(w, http.StatusOK, ErrorResponse{Success: false, Error: err.Error()})
	default:
		h.writeContentError(w, err)
	}
}

// POST /roulette/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Reset(r.Context(), SessionID(r.Context())); err != nil {
		h.log.Error().Err(err).Msg("reset failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GET /roulette/state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	seen, err := h.sessions.Seen(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("state lookup failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{Success: true, Seen: seen})
}
