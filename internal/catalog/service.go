// Package catalog queries the remote movie/series catalog and normalises its records.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/cache"
	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/model"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultSort       = "popularity.desc"
	defaultTotalPages = 500
	dateLayout        = "2006-01-02"

	searchLimit      = 20
	actorLimit       = 20
	actorCandidates  = 10
	newReleaseLimit  = 15
	comingSoonLimit  = 20
	leavingSoonLimit = 15
	dateRangeLimit   = 20
)

type Config struct {
	BaseURL             string
	APIKey              string
	Language            string
	WatchProvider       string
	WatchRegion         string
	WatchURLBase        string
	PosterBaseURL       string
	BackdropBaseURL     string
	ProfileBaseURL      string
	PlaceholderImage    string
	DescriptionFallback string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:             "https://api.themoviedb.org/3",
		Language:            "fr-FR",
		WatchProvider:       "8",
		WatchRegion:         "FR",
		WatchURLBase:        "https://www.netflix.com/search?q=",
		PosterBaseURL:       "https://image.tmdb.org/t/p/w500",
		BackdropBaseURL:     "https://image.tmdb.org/t/p/w1280",
		ProfileBaseURL:      "https://image.tmdb.org/t/p/w185",
		PlaceholderImage:    "/abstract-movie-poster.png",
		DescriptionFallback: "Description unavailable",
	}
}

// Fetcher is satisfied by *fetch.Fetcher.
type Fetcher interface {
	FetchJSON(ctx context.Context, rawURL string, v any) error
}

type Service struct {
	cfg       Config
	fetcher   Fetcher
	results   *cache.ResultCache
	estimator *model.DurationEstimator
	breaker   *gobreaker.CircuitBreaker[any]
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cfg Config, fetcher Fetcher, results *cache.ResultCache, estimator *model.DurationEstimator, opts ...Option) *Service {
	log := logging.Component("catalog")
	s := &Service{
		cfg:       cfg,
		fetcher:   fetcher,
		results:   results,
		estimator: estimator,
		breaker:   newBreaker("tmdb", log),
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns one page of catalog discovery, cache-fronted.
func (s *Service) Discover(ctx context.Context, kind domain.MediaKind, f domain.Filters, page int, sortBy string) (*domain.Page, error) {
	if page < 1 {
		page = 1
	}
	if sortBy == "" {
		sortBy = DefaultSort
	}
	genre := normaliseGenre(f.Genre)

	fp := cache.Fingerprint{Kind: kind, Genre: genre, Year: f.Year, Rating: f.MinRating, SortBy: sortBy, Page: page}
	entry, hit, err := s.results.GetOrFetch(ctx, fp, func(ctx context.Context) (*cache.Entry, error) {
		params := s.discoverParams()
		params.Set("sort_by", sortBy)
		params.Set("page", strconv.Itoa(page))
		if code, ok := domain.GenreCode(genre); ok {
			params.Set("with_genres", strconv.Itoa(code))
		}
		if f.Year > 0 {
			if kind == domain.Movie {
				params.Set("primary_release_year", strconv.Itoa(f.Year))
			} else {
				params.Set("first_air_date_year", strconv.Itoa(f.Year))
			}
		}
		if f.MinRating > 0 {
			params.Set("vote_average.gte", strconv.Itoa(f.MinRating))
			params.Set("vote_count.gte", "50")
		} else {
			params.Set("vote_count.gte", "50")
			params.Set("vote_average.gte", "1")
		}

		var resp tmdbListResponse
		if err := s.get(ctx, "/discover/"+kind.RemotePath(), params, &resp); err != nil {
			return nil, err
		}
		totalPages := resp.TotalPages
		if totalPages == 0 {
			totalPages = defaultTotalPages
		}
		return &cache.Entry{
			Items:      s.toItems(resp.Results, kind, durationEstimated, 0),
			TotalPages: totalPages,
			TotalCount: resp.TotalResults,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", kind, err)
	}

	return &domain.Page{
		Items:      entry.Items,
		Page:       page,
		TotalPages: entry.TotalPages,
		TotalCount: entry.TotalCount,
		Cached:     hit,
	}, nil
}

func (s *Service) SearchByTitle(ctx context.Context, query string, kind domain.MediaKind) ([]domain.Item, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")

	var resp tmdbListResponse
	if err := s.get(ctx, "/search/"+kind.RemotePath(), params, &resp); err != nil {
		return nil, fmt.Errorf("search %s %q: %w", kind, query, err)
	}
	return s.toItems(resp.Results, kind, durationMarker, searchLimit), nil
}

// SearchActors returns the best person matches for name.
func (s *Service) SearchActors(ctx context.Context, name string) ([]domain.Person, error) {
	params := url.Values{}
	params.Set("query", name)

	var resp tmdbPersonResponse
	if err := s.get(ctx, "/search/person", params, &resp); err != nil {
		return nil, fmt.Errorf("search actor %q: %w", name, err)
	}

	people := resp.Results
	if len(people) > actorCandidates {
		people = people[:actorCandidates]
	}
	out := make([]domain.Person, 0, len(people))
	for _, p := range people {
		out = append(out, domain.Person{
			ID:          p.ID,
			Name:        p.Name,
			ProfilePath: s.imageURL(s.cfg.ProfileBaseURL, p.ProfilePath),
			Department:  p.KnownForDepartment,
			Popularity:  p.Popularity,
		})
	}
	return out, nil
}

// SearchByActorName resolves name to its best match and lists that person's titles.
func (s *Service) SearchByActorName(ctx context.Context, name string, kind domain.MediaKind) (*domain.ActorResults, error) {
	people, err := s.SearchActors(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, domain.ErrActorNotFound
	}
	actor := people[0]

	params := s.discoverParams()
	params.Set("with_cast", strconv.FormatInt(actor.ID, 10))
	params.Set("sort_by", "popularity.desc")
	params.Set("vote_count.gte", "20")

	var resp tmdbListResponse
	if err := s.get(ctx, "/discover/"+kind.RemotePath(), params, &resp); err != nil {
		return nil, fmt.Errorf("list titles for actor %q: %w", actor.Name, err)
	}
	return &domain.ActorResults{
		ActorName: actor.Name,
		Items:     s.toItems(resp.Results, kind, durationEstimated, actorLimit),
	}, nil
}

// GetDetails fetches one record with credits and videos.
func (s *Service) GetDetails(ctx context.Context, id int64, kind domain.MediaKind) (*domain.Item, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits,videos")

	var d tmdbDetails
	path := fmt.Sprintf("/%s/%d", kind.RemotePath(), id)
	if err := s.get(ctx, path, params, &d); err != nil {
		return nil, fmt.Errorf("get details %s %d: %w", kind, id, err)
	}
	item := s.detailsToItem(&d, kind)
	return &item, nil
}

// NewReleases lists titles released in the given month. Zero year or month means the current one.
func (s *Service) NewReleases(ctx context.Context, kind domain.MediaKind, year, month int) ([]domain.Item, error) {
	now := s.now()
	if year <= 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		month = int(now.Month())
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	items, err := s.discoverWindow(ctx, kind, windowQuery{
		name:      "new_releases",
		sortBy:    "release_date.desc",
		from:      start.Format(dateLayout),
		to:        end.Format(dateLayout),
		exclusive: true,
		minVotes:  20,
		limit:     newReleaseLimit,
		mode:      durationEstimated,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch new releases: %w", err)
	}
	return items, nil
}

// ComingSoon lists titles releasing within the next three months.
func (s *Service) ComingSoon(ctx context.Context, kind domain.MediaKind) ([]domain.Item, error) {
	now := s.now()
	extra := url.Values{}
	extra.Set("with_release_type", "3|2")

	items, err := s.discoverWindow(ctx, kind, windowQuery{
		name:        "coming_soon",
		sortBy:      "primary_release_date.asc",
		from:        now.Format(dateLayout),
		to:          now.AddDate(0, 3, 0).Format(dateLayout),
		minVotes:    10,
		extra:       extra,
		limit:       comingSoonLimit,
		mode:        durationMarker,
		releaseDate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch coming soon: %w", err)
	}
	return items, nil
}

// LeavingSoon lists popular titles released one to two years ago.
func (s *Service) LeavingSoon(ctx context.Context, kind domain.MediaKind) ([]domain.Item, error) {
	now := s.now()
	items, err := s.discoverWindow(ctx, kind, windowQuery{
		name:     "leaving_soon",
		sortBy:   "popularity.desc",
		from:     now.AddDate(-2, 0, 0).Format(dateLayout),
		to:       now.AddDate(-1, 0, 0).Format(dateLayout),
		minVotes: 20,
		limit:    leavingSoonLimit,
		mode:     durationMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch leaving soon: %w", err)
	}
	return items, nil
}

// ByDateRange lists titles released between start and end (YYYY-MM-DD, inclusive).
func (s *Service) ByDateRange(ctx context.Context, kind domain.MediaKind, start, end string) ([]domain.Item, error) {
	items, err := s.discoverWindow(ctx, kind, windowQuery{
		name:        "date_range",
		sortBy:      "release_date.desc",
		from:        start,
		to:          end,
		minVotes:    10,
		limit:       dateRangeLimit,
		mode:        durationEstimated,
		releaseDate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch date range %s..%s: %w", start, end, err)
	}
	return items, nil
}

type windowQuery struct {
	name        string
	sortBy      string
	from, to    string
	exclusive   bool // upper bound uses .lt instead of .lte
	minVotes    int
	extra       url.Values
	limit       int
	mode        durationMode
	releaseDate bool
}

func (s *Service) discoverWindow(ctx context.Context, kind domain.MediaKind, q windowQuery) ([]domain.Item, error) {
	fp := cache.Fingerprint{Query: q.name, Kind: kind, SortBy: q.sortBy, Page: 1, From: q.from, To: q.to}
	entry, _, err := s.results.GetOrFetch(ctx, fp, func(ctx context.Context) (*cache.Entry, error) {
		dateField := "primary_release_date"
		if kind == domain.Series {
			dateField = "first_air_date"
		}
		upper := ".lte"
		if q.exclusive {
			upper = ".lt"
		}

		params := s.discoverParams()
		params.Set("sort_by", q.sortBy)
		if q.from != "" {
			params.Set(dateField+".gte", q.from)
		}
		if q.to != "" {
			params.Set(dateField+upper, q.to)
		}
		params.Set("vote_count.gte", strconv.Itoa(q.minVotes))
		for k, vs := range q.extra {
			for _, v := range vs {
				params.Add(k, v)
			}
		}

		var resp tmdbListResponse
		if err := s.get(ctx, "/discover/"+kind.RemotePath(), params, &resp); err != nil {
			return nil, err
		}

		raws := resp.Results
		if len(raws) > q.limit {
			raws = raws[:q.limit]
		}
		items := make([]domain.Item, 0, len(raws))
		for _, r := range raws {
			item := s.toItem(r, kind, q.mode)
			if q.releaseDate {
				item.ReleaseDate = r.releaseDate()
			}
			items = append(items, item)
		}
		return &cache.Entry{Items: items, TotalPages: resp.TotalPages, TotalCount: resp.TotalResults}, nil
	})
	if err != nil {
		return nil, err
	}
	return entry.Items, nil
}

// Base parameters shared by every discovery query
func (s *Service) discoverParams() url.Values {
	params := url.Values{}
	params.Set("include_adult", "false")
	if s.cfg.WatchProvider != "" {
		params.Set("with_watch_providers", s.cfg.WatchProvider)
		params.Set("watch_region", s.cfg.WatchRegion)
	}
	return params
}

func (s *Service) get(ctx context.Context, path string, params url.Values, v any) error {
	params.Set("api_key", s.cfg.APIKey)
	if s.cfg.Language != "" {
		params.Set("language", s.cfg.Language)
	}
	rawURL := strings.TrimRight(s.cfg.BaseURL, "/") + path + "?" + params.Encode()

	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.fetcher.FetchJSON(ctx, rawURL, v)
	})
	return err
}

func normaliseGenre(g string) string {
	g = strings.ToLower(strings.TrimSpace(g))
	if g == "all" {
		return ""
	}
	return g
}
