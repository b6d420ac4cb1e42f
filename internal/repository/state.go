package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	keyFavorites   = "favorites"
	keyRatings     = "ratings"
	keyHistory     = "history"
	keyMuted       = "muted"
	keySeen        = "seen"
	keyRecent      = "recent"
	keyWatched     = "watched"
	keyDetailCache = "detail-cache"
)

// DetailRecord is one persisted detail cache entry.
type DetailRecord struct {
	Item          domain.Item `json:"item"`
	FetchedAt     time.Time   `json:"fetchedAt"`
	DetailsLoaded bool        `json:"detailsLoaded"`
}

// State gives typed access to one session's blobs.
type State struct {
	store Store
	scope string
	log   zerolog.Logger
}

func NewState(store Store, scope string) *State {
	return &State{
		store: store,
		scope: scope,
		log:   logging.Component("repository").With().Str("session", scope).Logger(),
	}
}

func (s *State) Scope() string {
	return s.scope
}

// Undecodable blobs are logged and read as the zero value.
func load[T any](ctx context.Context, s *State, key string) (T, error) {
	var v T
	raw, found, err := s.store.Get(ctx, s.scope, key)
	if err != nil {
		return v, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn().Str("key", key).Err(err).Msg("discarding undecodable state")
		var zero T
		return zero, nil
	}
	return v, nil
}

func save[T any](ctx context.Context, s *State, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Put(ctx, s.scope, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *State) Favorites(ctx context.Context) ([]domain.Item, error) {
	return load[[]domain.Item](ctx, s, keyFavorites)
}

func (s *State) SaveFavorites(ctx context.Context, items []domain.Item) error {
	return save(ctx, s, keyFavorites, items)
}

func (s *State) Watched(ctx context.Context) ([]domain.Item, error) {
	return load[[]domain.Item](ctx, s, keyWatched)
}

func (s *State) SaveWatched(ctx context.Context, items []domain.Item) error {
	return save(ctx, s, keyWatched, items)
}

func (s *State) History(ctx context.Context) ([]domain.Item, error) {
	return load[[]domain.Item](ctx, s, keyHistory)
}

func (s *State) SaveHistory(ctx context.Context, items []domain.Item) error {
	if len(items) > domain.HistoryLimit {
		items = items[:domain.HistoryLimit]
	}
	return save(ctx, s, keyHistory, items)
}

func (s *State) Ratings(ctx context.Context) (map[int64]int, error) {
	r, err := load[map[int64]int](ctx, s, keyRatings)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = make(map[int64]int)
	}
	return r, nil
}

func (s *State) SaveRatings(ctx context.Context, ratings map[int64]int) error {
	return save(ctx, s, keyRatings, ratings)
}

func (s *State) Muted(ctx context.Context) (bool, error) {
	return load[bool](ctx, s, keyMuted)
}

func (s *State) SaveMuted(ctx context.Context, muted bool) error {
	return save(ctx, s, keyMuted, muted)
}

func (s *State) SeenIDs(ctx context.Context) ([]int64, error) {
	return load[[]int64](ctx, s, keySeen)
}

func (s *State) SaveSeenIDs(ctx context.Context, ids []int64) error {
	return save(ctx, s, keySeen, ids)
}

// RecentIDs are the recently drawn ids, most recent first.
func (s *State) RecentIDs(ctx context.Context) ([]int64, error) {
	return load[[]int64](ctx, s, keyRecent)
}

func (s *State) SaveRecentIDs(ctx context.Context, ids []int64) error {
	return save(ctx, s, keyRecent, ids)
}

func (s *State) DetailCache(ctx context.Context) ([]DetailRecord, error) {
	return load[[]DetailRecord](ctx, s, keyDetailCache)
}

func (s *State) SaveDetailCache(ctx context.Context, records []DetailRecord) error {
	return save(ctx, s, keyDetailCache, records)
}

// Library reads every user-facing list in one go.
func (s *State) Library(ctx context.Context) (*domain.Library, error) {
	var (
		lib domain.Library
		err error
	)
	if lib.Favorites, err = s.Favorites(ctx); err != nil {
		return nil, err
	}
	if lib.Watched, err = s.Watched(ctx); err != nil {
		return nil, err
	}
	if lib.History, err = s.History(ctx); err != nil {
		return nil, err
	}
	if lib.Ratings, err = s.Ratings(ctx); err != nil {
		return nil, err
	}
	if lib.Muted, err = s.Muted(ctx); err != nil {
		return nil, err
	}
	return &lib, nil
}
