package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/details"
	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/metrics"
	"github.com/actuallystonmai/content-roulette/internal/pool"
	"github.com/actuallystonmai/content-roulette/internal/repository"
	"github.com/rs/zerolog"
)

const maxRating = 5

// Catalog is satisfied by *catalog.Service.
type Catalog interface {
	pool.Catalog
	details.Loader
}

type Stats struct {
	Movies int `json:"movies"`
	Series int `json:"series"`
}

// one roulette engine plus its persisted state
type session struct {
	state   *repository.State
	manager *pool.Manager
	details *details.Cache

	// serializes read-modify-write of library lists
	mu sync.Mutex

	// guarded by Service.mu
	lastUsed time.Time
}

type Service struct {
	poolCfg    pool.Config
	detailsTTL time.Duration
	catalog    Catalog
	store      repository.Store
	newRand    func() *rand.Rand
	now        func() time.Time
	log        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Service)

// WithRand sets the random source factory used for each new session.
func WithRand(newRand func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = newRand }
}

func WithDetailsTTL(ttl time.Duration) Option {
	return func(s *Service) { s.detailsTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(poolCfg pool.Config, catalog Catalog, store repository.Store, opts ...Option) *Service {
	s := &Service{
		poolCfg:    poolCfg,
		detailsTTL: details.DefaultTTL,
		catalog:    catalog,
		store:      store,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		now:      time.Now,
		log:      logging.Component("service"),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get or lazily build the engine for a session, restoring what was persisted
func (s *Service) session(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = s.now()
		return sess, nil
	}

	state := repository.NewState(s.store, id)
	dc := details.New(s.catalog, state, details.WithTTL(s.detailsTTL))
	if err := dc.Restore(ctx); err != nil {
		s.log.Warn().Str("session", id).Err(err).Msg("detail cache restore failed")
	}
	mgr := pool.NewManager(s.poolCfg, s.catalog, dc, state, s.newRand())
	if err := mgr.Load(ctx); err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	sess := &session{state: state, manager: mgr, details: dc, lastUsed: s.now()}
	s.sessions[id] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.log.Debug().Str("session", id).Int("seen", mgr.Seen()).Msg("session started")
	return sess, nil
}

// EvictIdle drops engines unused for longer than maxIdle. Their state stays in the
// store, so a returning session is rebuilt on its next request.
func (s *Service) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Int("live", len(s.sessions)).Msg("idle sessions evicted")
	}
	return evicted
}

// Sessions returns how many engines are live.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) Draw(ctx context.Context, sessionID string, sel pool.Selection) (domain.Item, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.Item{}, err
	}
	return sess.manager.Draw(ctx, sel)
}

func (s *Service) Reset(ctx context.Context, sessionID string) error {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}
	return sess.manager.Reset(ctx)
}

func (s *Service) Seen(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return sess.manager.Seen(), nil
}

func (s *Service) Library(ctx context.Context, sessionID string) (*domain.Library, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	lib, err := sess.state.Library(ctx)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	return lib, nil
}

// Toggle an item in favorites. Returns true when it was added.
func (s *Service) ToggleFavorite(ctx context.Context, sessionID string, item domain.Item) (bool, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	favs, err := sess.state.Favorites(ctx)
	if err != nil {
		return false, fmt.Errorf("read favorites: %w", err)
	}
	favs, added := domain.ToggleItem(favs, item)
	if err := sess.state.SaveFavorites(ctx, favs); err != nil {
		return false, fmt.Errorf("save favorites: %w", err)
	}
	return added, nil
}

// Toggle an item in the watched list. Watched items are never drawn again.
func (s *Service) ToggleWatched(ctx context.Context, sessionID string, item domain.Item) (bool, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	watched, err := sess.state.Watched(ctx)
	if err != nil {
		return false, fmt.Errorf("read watched: %w", err)
	}
	watched, added := domain.ToggleItem(watched, item)
	if err := sess.state.SaveWatched(ctx, watched); err != nil {
		return false, fmt.Errorf("save watched: %w", err)
	}
	return added, nil
}

// OpenExternal records the item in history and returns where to watch it.
func (s *Service) OpenExternal(ctx context.Context, sessionID string, item domain.Item) (string, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	history, err := sess.state.History(ctx)
	if err != nil {
		return "", fmt.Errorf("read history: %w", err)
	}
	if err := sess.state.SaveHistory(ctx, domain.PushHistory(history, item)); err != nil {
		return "", fmt.Errorf("save history: %w", err)
	}
	return item.ExternalWatchURL, nil
}

// Rate stores a 1..5 star rating. Zero clears it.
func (s *Service) Rate(ctx context.Context, sessionID string, id int64, stars int) error {
	if stars < 0 || stars > maxRating {
		return domain.ErrInvalidRating
	}
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ratings, err := sess.state.Ratings(ctx)
	if err != nil {
		return fmt.Errorf("read ratings: %w", err)
	}
	if stars == 0 {
		delete(ratings, id)
	} else {
		ratings[id] = stars
	}
	if err := sess.state.SaveRatings(ctx, ratings); err != nil {
		return fmt.Errorf("save ratings: %w", err)
	}
	return nil
}

func (s *Service) SetMuted(ctx context.Context, sessionID string, muted bool) error {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.state.SaveMuted(ctx, muted); err != nil {
		return fmt.Errorf("save muted: %w", err)
	}
	return nil
}

// Stats reports catalog totals for both media kinds, fetched concurrently.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	kinds := []domain.MediaKind{domain.Movie, domain.Series}
	totals := make([]int, len(kinds))
	errs := make([]error, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(idx int, k domain.MediaKind) {
			defer wg.Done()
			page, err := s.catalog.Discover(ctx, k, domain.Filters{}, 1, "")
			if err != nil {
				errs[idx] = fmt.Errorf("count %s: %w", k, err)
				return
			}
			totals[idx] = page.TotalCount
		}(i, kind)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &Stats{Movies: totals[0], Series: totals[1]}, nil
}
