// Package pool draws never-seen titles from shuffled pools of catalog results.
package pool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/metrics"
	"github.com/actuallystonmai/content-roulette/internal/repository"
	"github.com/rs/zerolog"
	concpool "github.com/sourcegraph/conc/pool"
)

type Config struct {
	PoolPages          int
	MaxPage            int
	DispatchStagger    time.Duration
	RegenerateAttempts int
	DrawInterval       time.Duration
	RecentLimit        int
	LowWater           int
	PreloadCount       int
}

func DefaultConfig() Config {
	return Config{
		PoolPages:          5,
		MaxPage:            100,
		DispatchStagger:    200 * time.Millisecond,
		RegenerateAttempts: 5,
		DrawInterval:       500 * time.Millisecond,
		RecentLimit:        100,
		LowWater:           5,
		PreloadCount:       3,
	}
}

// Catalog is satisfied by *catalog.Service.
type Catalog interface {
	Discover(ctx context.Context, kind domain.MediaKind, f domain.Filters, page int, sortBy string) (*domain.Page, error)
	SearchByActorName(ctx context.Context, name string, kind domain.MediaKind) (*domain.ActorResults, error)
}

// Preloader is satisfied by *details.Cache.
type Preloader interface {
	Preload(ctx context.Context, item domain.Item)
	Load(ctx context.Context, item domain.Item) domain.Item
}

// Manager runs the roulette for one session. Draw and Reset are serialized.
type Manager struct {
	cfg      Config
	catalog  Catalog
	details  Preloader
	state    *repository.State
	rng      *rand.Rand
	debounce *Debouncer
	now      func() time.Time
	log      zerolog.Logger

	mu         sync.Mutex
	pools      map[Key][]domain.Item
	generation int
	seen       map[int64]struct{}
	seenOrder  []int64
	recent     []int64
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg Config, catalog Catalog, details Preloader, state *repository.State, rng *rand.Rand, opts ...Option) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Manager{
		cfg:      cfg,
		catalog:  catalog,
		details:  details,
		state:    state,
		rng:      rng,
		debounce: NewDebouncer(cfg.DrawInterval),
		now:      time.Now,
		log:      logging.Component("pool").With().Str("session", state.Scope()).Logger(),
		pools:    make(map[Key][]domain.Item),
		seen:     make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores the persisted seen set and recently-used ring.
func (m *Manager) Load(ctx context.Context) error {
	seen, err := m.state.SeenIDs(ctx)
	if err != nil {
		return fmt.Errorf("load seen ids: %w", err)
	}
	recent, err := m.state.RecentIDs(ctx)
	if err != nil {
		return fmt.Errorf("load recent ids: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range seen {
		if _, ok := m.seen[id]; !ok {
			m.seen[id] = struct{}{}
			m.seenOrder = append(m.seenOrder, id)
		}
	}
	if len(recent) > m.cfg.RecentLimit {
		recent = recent[:m.cfg.RecentLimit]
	}
	m.recent = recent
	return nil
}

func (m *Manager) Seen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Draw returns a title this session has never been shown.
func (m *Manager) Draw(ctx context.Context, sel Selection) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.debounce.TryAcquire(m.now()) {
		metrics.Draws.WithLabelValues("ignored").Inc()
		return domain.Item{}, domain.ErrDrawIgnored
	}

	excluded := m.excludedIDs(ctx)

	key := Key{Selection: sel, Generation: m.generation}
	items := m.pools[key]
	if len(items) == 0 {
		var err error
		if items, err = m.loadPoolLocked(ctx, key, excluded); err != nil {
			return domain.Item{}, err
		}
	}
	if len(items) == 0 && len(m.seen) == 0 {
		metrics.Draws.WithLabelValues("empty").Inc()
		return domain.Item{}, domain.ErrNoContent
	}

	if choices := m.candidates(items, excluded, true); len(choices) > 0 {
		metrics.Draws.WithLabelValues("drawn").Inc()
		return m.selectLocked(ctx, choices), nil
	}

	// Everything here was shown: move to a fresh generation of pools
	m.generation++
	m.pruneLocked()
	m.recent = nil
	m.persistRecent(ctx)
	m.log.Info().Int("generation", m.generation).Int("seen", len(m.seen)).Msg("pool exhausted, regenerating")

	for attempt := 0; attempt < m.cfg.RegenerateAttempts; attempt++ {
		next := Key{Selection: sel, Generation: m.generation + attempt}
		items, err := m.loadPoolLocked(ctx, next, excluded)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Item{}, ctxErr
			}
			// a failed batch is just an empty generation
			m.log.Warn().Err(err).Str("pool", next.String()).Int("attempt", attempt+1).Msg("regeneration batch failed")
			continue
		}
		if fresh := m.candidates(items, excluded, false); len(fresh) > 0 {
			m.generation = next.Generation
			m.pruneLocked()
			metrics.Draws.WithLabelValues("regenerated").Inc()
			return m.selectLocked(ctx, fresh), nil
		}
	}

	metrics.Draws.WithLabelValues("exhausted").Inc()
	return domain.Item{}, domain.ErrNoNewContent
}

// Reset forgets what was shown. Library lists and caches are untouched.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen = make(map[int64]struct{})
	m.seenOrder = nil
	m.recent = nil

	if err := m.state.SaveSeenIDs(ctx, nil); err != nil {
		return fmt.Errorf("reset seen ids: %w", err)
	}
	if err := m.state.SaveRecentIDs(ctx, nil); err != nil {
		return fmt.Errorf("reset recent ids: %w", err)
	}
	m.log.Info().Msg("seen history reset")
	return nil
}

// Pools from earlier generations can never be drawn from again
func (m *Manager) pruneLocked() {
	for k := range m.pools {
		if k.Generation < m.generation {
			delete(m.pools, k)
		}
	}
}

// A stored pool with enough unseen titles left is reused as is
func (m *Manager) loadPoolLocked(ctx context.Context, key Key, excluded map[int64]struct{}) ([]domain.Item, error) {
	if existing, ok := m.pools[key]; ok {
		if unseen := m.candidates(existing, excluded, false); len(unseen) > m.cfg.LowWater {
			metrics.PoolRefills.WithLabelValues("reused").Inc()
			return unseen, nil
		}
	}
	return m.refillLocked(ctx, key, excluded)
}

// Fetch random pages concurrently and merge what came back
func (m *Manager) refillLocked(ctx context.Context, key Key, excluded map[int64]struct{}) ([]domain.Item, error) {
	pages := m.cfg.PoolPages
	if key.Filters.Actor != "" {
		pages = 1
	}
	p := concpool.NewWithResults[[]domain.Item]().
		WithContext(ctx).
		WithMaxGoroutines(pages)

	for i := 0; i < pages; i++ {
		if i > 0 && m.cfg.DispatchStagger > 0 {
			select {
			case <-time.After(m.cfg.DispatchStagger):
			case <-ctx.Done():
			}
		}
		page := m.rng.Intn(m.cfg.MaxPage) + 1
		p.Go(func(ctx context.Context) ([]domain.Item, error) {
			return m.fetchPage(ctx, key.Selection, page)
		})
	}

	batches, err := p.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		// nothing is stored so the next draw retries this pool
		if len(batches) == 0 {
			metrics.PoolRefills.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("refill pool %s: %w", key, err)
		}
		m.log.Warn().Str("pool", key.String()).Err(err).Msg("some pool queries failed")
	}

	merged := make([]domain.Item, 0, len(batches)*20)
	dup := make(map[int64]struct{})
	for _, batch := range batches {
		for _, it := range batch {
			if _, ok := dup[it.ID]; ok {
				continue
			}
			dup[it.ID] = struct{}{}
			if _, ok := m.seen[it.ID]; ok {
				continue
			}
			if _, ok := excluded[it.ID]; ok {
				continue
			}
			merged = append(merged, it)
		}
	}
	m.rng.Shuffle(len(merged), func(i, j int) { merged[i], merged[j] = merged[j], merged[i] })

	if key.Generation < m.generation {
		m.log.Debug().Str("pool", key.String()).Msg("discarding stale pool")
		return merged, nil
	}

	if len(merged) == 0 {
		metrics.PoolRefills.WithLabelValues("empty").Inc()
	} else {
		metrics.PoolRefills.WithLabelValues("filled").Inc()
	}
	m.pools[key] = merged
	m.log.Debug().Str("pool", key.String()).Int("items", len(merged)).Msg("pool filled")

	for i := 0; i < len(merged) && i < m.cfg.PreloadCount; i++ {
		m.details.Preload(ctx, merged[i])
	}
	return merged, nil
}

func (m *Manager) fetchPage(ctx context.Context, sel Selection, page int) ([]domain.Item, error) {
	// the actor listing is not paginated upstream
	if sel.Filters.Actor != "" {
		res, err := m.catalog.SearchByActorName(ctx, sel.Filters.Actor, sel.Kind)
		if err != nil {
			return nil, err
		}
		return res.Items, nil
	}
	res, err := m.catalog.Discover(ctx, sel.Kind, sel.Filters, page, "")
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (m *Manager) candidates(items []domain.Item, excluded map[int64]struct{}, skipRecent bool) []domain.Item {
	var recent map[int64]struct{}
	if skipRecent {
		recent = make(map[int64]struct{}, len(m.recent))
		for _, id := range m.recent {
			recent[id] = struct{}{}
		}
	}

	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if _, ok := m.seen[it.ID]; ok {
			continue
		}
		if _, ok := excluded[it.ID]; ok {
			continue
		}
		if _, ok := recent[it.ID]; ok {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (m *Manager) selectLocked(ctx context.Context, choices []domain.Item) domain.Item {
	pick := choices[m.rng.Intn(len(choices))]
	detailed := m.details.Load(ctx, pick)

	m.seen[pick.ID] = struct{}{}
	m.seenOrder = append(m.seenOrder, pick.ID)

	m.recent = append([]int64{pick.ID}, m.recent...)
	if len(m.recent) > m.cfg.RecentLimit {
		m.recent = m.recent[:m.cfg.RecentLimit]
	}

	if err := m.state.SaveSeenIDs(ctx, m.seenOrder); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist seen ids")
	}
	m.persistRecent(ctx)
	return detailed
}

func (m *Manager) persistRecent(ctx context.Context) {
	if err := m.state.SaveRecentIDs(ctx, m.recent); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist recent ids")
	}
}

// Titles the user marked watched or opened externally are never drawn
func (m *Manager) excludedIDs(ctx context.Context) map[int64]struct{} {
	out := make(map[int64]struct{})
	watched, err := m.state.Watched(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to read watched list")
	}
	history, err := m.state.History(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to read history")
	}
	for _, it := range watched {
		out[it.ID] = struct{}{}
	}
	for _, it := range history {
		out[it.ID] = struct{}{}
	}
	return out
}
