package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/actuallystonmai/content-roulette/internal/domain"
)

// GET /content
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	p, err := h.parseContentParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	ctx := r.Context()

	// Same precedence as the catalog front end always used
	switch {
	case p.ComingSoon:
		items, err := h.content.ComingSoon(ctx, p.Kind)
		h.writeList(w, items, err)
	case p.LeavingSoon:
		items, err := h.content.LeavingSoon(ctx, p.Kind)
		h.writeList(w, items, err)
	case p.DateRange:
		items, err := h.content.ByDateRange(ctx, p.Kind, p.DateStart, p.DateEnd)
		h.writeList(w, items, err)
	case p.Actor != "":
		res, err := h.content.SearchByActorName(ctx, p.Actor, p.Kind)
		if err != nil {
			h.writeContentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ActorResponse{Success: true, Results: res.Items, ActorName: res.ActorName})
	case p.Search != "":
		items, err := h.content.SearchByTitle(ctx, p.Search, p.Kind)
		h.writeList(w, items, err)
	case p.ID > 0:
		item, err := h.content.GetDetails(ctx, p.ID, p.Kind)
		if err != nil {
			h.writeContentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ItemResponse{Success: true, Result: *item})
	case p.NewReleases:
		items, err := h.content.NewReleases(ctx, p.Kind, p.Year, p.Month)
		h.writeList(w, items, err)
	default:
		page, err := h.content.Discover(ctx, p.Kind, p.filters(), p.Page, p.SortBy)
		if err != nil {
			h.writeContentError(w, err)
			return
		}
		items := page.Items
		if p.Limit > 0 && len(items) > p.Limit {
			items = items[:p.Limit]
		}
		writeJSON(w, http.StatusOK, PageResponse{
			Success: true,
			Results: items,
			Total:   page.TotalCount,
			Page:    page.Page,
			HasMore: page.HasMore(),
			Cached:  page.Cached,
		})
	}
}

// GET /actors?query=
func (h *Handler) SearchActors(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("query"))
	if err := h.validate.Var(name, "required,max=200"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid query parameter")
		return
	}
	people, err := h.content.SearchActors(r.Context(), name)
	if err != nil {
		h.writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PeopleResponse{Success: true, Results: people})
}

func (h *Handler) writeList(w http.ResponseWriter, items []domain.Item, err error) {
	if err != nil {
		h.writeContentError(w, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Success: true, Results: items})
}

func (h *Handler) writeContentError(w http.ResponseWriter, err error) {
	// Unknown actor is an answer, not a failure
	if errors.Is(err, domain.ErrActorNotFound) {
		writeJSON(w, http.StatusOK, ErrorResponse{Success: false, Error: err.Error()})
		return
	}
	// Request timeout
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "Request timed out, please try again")
		return
	}
	h.log.Error().Err(err).Msg("content request failed")
	writeError(w, http.StatusInternalServerError, "upstream_error", "failed to fetch content: "+err.Error())
}
