package handler

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/pool"
)

// contentParams is the parsed form of the /content and /roulette/draw query string.
type contentParams struct {
	Kind      domain.MediaKind
	Genre     string `validate:"omitempty,max=32"`
	Year      int    `validate:"omitempty,gte=1870,lte=2200"`
	Rating    int    `validate:"gte=0,lte=10"`
	SortBy    string `validate:"omitempty,max=64"`
	Page      int    `validate:"gte=1,lte=500"`
	Limit     int    `validate:"gte=0,lte=100"`
	Month     int    `validate:"omitempty,gte=1,lte=12"`
	ID        int64  `validate:"gte=0"`
	Search    string `validate:"omitempty,max=200"`
	Actor     string `validate:"omitempty,max=200"`
	DateStart string `validate:"omitempty,datetime=2006-01-02"`
	DateEnd   string `validate:"omitempty,datetime=2006-01-02"`

	ComingSoon  bool
	LeavingSoon bool
	DateRange   bool
	NewReleases bool
}

func (p contentParams) filters() domain.Filters {
	return domain.Filters{Genre: p.Genre, Year: p.Year, MinRating: p.Rating, Actor: p.Actor}
}

func (p contentParams) selection() pool.Selection {
	return pool.Selection{Kind: p.Kind, Filters: p.filters()}
}

func (h *Handler) parseContentParams(q url.Values) (contentParams, error) {
	var (
		p   contentParams
		err error
	)
	if p.Kind, err = domain.ParseMediaKind(q.Get("type")); err != nil {
		return p, err
	}
	if g := strings.TrimSpace(q.Get("genre")); g != "all" {
		p.Genre = g
	}
	if p.Year, err = optionalInt(q, "year"); err != nil {
		return p, err
	}
	if p.Rating, err = optionalRating(q); err != nil {
		return p, err
	}
	if p.Month, err = optionalInt(q, "month"); err != nil {
		return p, err
	}
	if p.Limit, err = optionalInt(q, "limit"); err != nil {
		return p, err
	}
	if p.Page, err = optionalInt(q, "page"); err != nil {
		return p, err
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if raw := q.Get("id"); raw != "" {
		if p.ID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return p, fmt.Errorf("invalid id %q", raw)
		}
	}
	p.SortBy = q.Get("sort_by")
	p.Search = strings.TrimSpace(q.Get("search"))
	p.Actor = strings.TrimSpace(q.Get("actor"))

	p.ComingSoon = q.Get("coming_soon") == "true"
	p.LeavingSoon = q.Get("leaving_soon") == "true"
	p.NewReleases = q.Get("new_releases") == "true"
	if raw := q.Get("date_range"); raw != "" {
		start, end, ok := strings.Cut(raw, ",")
		if !ok || strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
			return p, fmt.Errorf("date_range must be start,end")
		}
		p.DateRange = true
		p.DateStart, p.DateEnd = strings.TrimSpace(start), strings.TrimSpace(end)
	}

	if err := h.validate.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}

// "" and "all" mean unset
func optionalInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" || raw == "all" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

// Fractional ratings are truncated: 7.5 filters on 7.
func optionalRating(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("rating"))
	if raw == "" || raw == "all" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid rating %q", raw)
	}
	if f < 0 || f > 10 {
		return 0, fmt.Errorf("rating %q out of range", raw)
	}
	return int(f), nil
}
