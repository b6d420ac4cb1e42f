package catalog

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/model"
)

const (
	movieMarker  = "Film"
	seriesMarker = "Series"
	castLimit    = 5
)

type durationMode int

const (
	durationEstimated durationMode = iota
	durationMarker
)

// Normalise a list record into an Item. Missing fields fall back to placeholders.
func (s *Service) toItem(raw tmdbListItem, kind domain.MediaKind, mode durationMode) domain.Item {
	year := parseYear(raw.releaseDate())
	item := domain.Item{
		ID:               raw.ID,
		MediaKind:        kind,
		Title:            raw.title(),
		Description:      raw.Overview,
		Image:            s.imageURL(s.cfg.PosterBaseURL, raw.PosterPath),
		Categories:       domain.GenreTags(raw.GenreIDs),
		Year:             year,
		Rating:           roundRating(raw.VoteAverage),
		ExternalWatchURL: s.watchURL(raw.title()),
	}
	if item.Description == "" {
		item.Description = s.cfg.DescriptionFallback
	}
	if item.Image == "" {
		item.Image = s.cfg.PlaceholderImage
	}
	if raw.BackdropPath != "" {
		item.Backdrop = s.imageURL(s.cfg.BackdropBaseURL, raw.BackdropPath)
	}

	switch {
	case kind == domain.Series:
		item.Seasons = seriesMarker
		if mode == durationMarker {
			item.Duration = seriesMarker
		}
	case mode == durationMarker:
		item.Duration = movieMarker
	default:
		item.Duration = s.estimator.Estimate(raw.GenreIDs, int(year))
	}
	return item
}

func (s *Service) toItems(raws []tmdbListItem, kind domain.MediaKind, mode durationMode, limit int) []domain.Item {
	if limit > 0 && len(raws) > limit {
		raws = raws[:limit]
	}
	items := make([]domain.Item, 0, len(raws))
	for _, r := range raws {
		items = append(items, s.toItem(r, kind, mode))
	}
	return items
}

// Full record from the details endpoint: real runtime, cast, trailer.
func (s *Service) detailsToItem(d *tmdbDetails, kind domain.MediaKind) domain.Item {
	codes := make([]int, 0, len(d.Genres))
	for _, g := range d.Genres {
		codes = append(codes, g.ID)
	}
	d.GenreIDs = codes

	item := s.toItem(d.tmdbListItem, kind, durationMarker)
	item.Duration = ""
	item.Seasons = ""

	if kind == domain.Series {
		if d.NumberOfSeasons > 0 {
			item.Seasons = formatSeasons(d.NumberOfSeasons)
		} else {
			item.Seasons = seriesMarker
		}
	} else if d.Runtime > 0 {
		item.Duration = model.FormatRuntime(d.Runtime)
	}

	cast := d.Credits.Cast
	if len(cast) > castLimit {
		cast = cast[:castLimit]
	}
	for _, c := range cast {
		member := domain.CastMember{ID: c.ID, Name: c.Name, Character: c.Character}
		if c.ProfilePath != "" {
			member.ProfilePath = s.imageURL(s.cfg.ProfileBaseURL, c.ProfilePath)
		}
		item.Cast = append(item.Cast, member)
	}

	item.Trailer = pickTrailer(d.Videos.Results)
	return item
}

func pickTrailer(videos []tmdbVideo) string {
	for _, v := range videos {
		if (v.Type == "Trailer" || v.Type == "Teaser") && v.Site == "YouTube" {
			return v.Key
		}
	}
	return ""
}

func formatSeasons(n int) string {
	if n == 1 {
		return "1 season"
	}
	return fmt.Sprintf("%d seasons", n)
}

// Catalog dates are YYYY-MM-DD; anything unparseable is an unknown year
func parseYear(date string) domain.Year {
	if len(date) < 4 {
		return domain.UnknownYear
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return domain.UnknownYear
	}
	return domain.Year(y)
}

func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Service) imageURL(base, path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Search link on the streaming service, spaces encoded as %20
func (s *Service) watchURL(title string) string {
	return s.cfg.WatchURLBase + strings.ReplaceAll(url.QueryEscape(title), "+", "%20")
}
