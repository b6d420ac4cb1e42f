// Package details enriches list records with trailer, cast and runtime.
package details

import (
	"context"
	"sync"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/metrics"
	"github.com/actuallystonmai/content-roulette/internal/repository"
	"github.com/rs/zerolog"
)

const (
	DefaultTTL     = 30 * time.Minute
	preloadTimeout = 20 * time.Second
)

// Loader is satisfied by *catalog.Service.
type Loader interface {
	GetDetails(ctx context.Context, id int64, kind domain.MediaKind) (*domain.Item, error)
}

// Movies and series have separate id spaces upstream.
type recordKey struct {
	kind domain.MediaKind
	id   int64
}

func keyOf(item domain.Item) recordKey {
	return recordKey{kind: item.MediaKind, id: item.ID}
}

type enrichment struct {
	trailer   string
	cast      []domain.CastMember
	duration  string
	fetchedAt time.Time
}

// Cache holds enriched records for one session and preloads upcoming ones.
type Cache struct {
	loader Loader
	state  *repository.State
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger

	mu        sync.RWMutex
	records   map[recordKey]repository.DetailRecord
	preloaded map[recordKey]enrichment
	inflight  map[recordKey]struct{}
	wg        sync.WaitGroup
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// state may be nil, in which case nothing is persisted.
func New(loader Loader, state *repository.State, opts ...Option) *Cache {
	c := &Cache{
		loader:    loader,
		state:     state,
		ttl:       DefaultTTL,
		now:       time.Now,
		log:       logging.Component("details"),
		records:   make(map[recordKey]repository.DetailRecord),
		preloaded: make(map[recordKey]enrichment),
		inflight:  make(map[recordKey]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads the persisted records for this session.
func (c *Cache) Restore(ctx context.Context) error {
	if c.state == nil {
		return nil
	}
	records, err := c.state.DetailCache(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, r := range records {
		c.records[keyOf(r.Item)] = r
	}
	c.mu.Unlock()
	return nil
}

// Preload fetches details for item in the background.
func (c *Cache) Preload(ctx context.Context, item domain.Item) {
	if item.Trailer != "" {
		return
	}

	key := keyOf(item)
	c.mu.Lock()
	if r, ok := c.records[key]; ok && r.DetailsLoaded {
		c.mu.Unlock()
		return
	}
	if _, ok := c.preloaded[key]; ok {
		c.mu.Unlock()
		return
	}
	if _, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
		}()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), preloadTimeout)
		defer cancel()

		detailed, err := c.loader.GetDetails(pctx, item.ID, item.MediaKind)
		if err != nil {
			c.log.Debug().Int64("id", item.ID).Err(err).Msg("preload failed")
			return
		}

		c.mu.Lock()
		c.preloaded[key] = enrichment{
			trailer:   detailed.Trailer,
			cast:      detailed.Cast,
			duration:  detailed.Duration,
			fetchedAt: c.now(),
		}
		c.mu.Unlock()
	}()
}

// Wait blocks until in-flight preloads finish.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Load returns item enriched with details. Failures return item unchanged.
func (c *Cache) Load(ctx context.Context, item domain.Item) domain.Item {
	now := c.now()
	key := keyOf(item)

	c.mu.RLock()
	rec, cached := c.records[key]
	pre, preloaded := c.preloaded[key]
	c.mu.RUnlock()

	if cached && rec.DetailsLoaded && now.Sub(rec.FetchedAt) < c.ttl {
		metrics.DetailLoads.WithLabelValues("cache").Inc()
		return rec.Item
	}

	var merged domain.Item
	if preloaded && now.Sub(pre.fetchedAt) < c.ttl {
		metrics.DetailLoads.WithLabelValues("preload").Inc()
		merged = merge(item, pre.trailer, pre.cast, pre.duration)
	} else {
		detailed, err := c.loader.GetDetails(ctx, item.ID, item.MediaKind)
		if err != nil {
			metrics.DetailLoads.WithLabelValues("error").Inc()
			c.log.Warn().Int64("id", item.ID).Err(err).Msg("failed to load details")
			return item
		}
		metrics.DetailLoads.WithLabelValues("fetch").Inc()
		merged = merge(item, detailed.Trailer, detailed.Cast, detailed.Duration)
	}

	c.mu.Lock()
	c.records[key] = repository.DetailRecord{Item: merged, FetchedAt: now, DetailsLoaded: true}
	delete(c.preloaded, key)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.state != nil {
		if err := c.state.SaveDetailCache(ctx, snapshot); err != nil {
			c.log.Warn().Err(err).Msg("failed to persist detail cache")
		}
	}
	return merged
}

// Detail values win only when present
func merge(base domain.Item, trailer string, cast []domain.CastMember, duration string) domain.Item {
	out := base
	if trailer != "" {
		out.Trailer = trailer
	}
	if len(cast) > 0 {
		out.Cast = cast
	}
	if duration != "" {
		out.Duration = duration
	}
	return out
}

// Expired records are dropped from the persisted copy
func (c *Cache) snapshotLocked() []repository.DetailRecord {
	now := c.now()
	out := make([]repository.DetailRecord, 0, len(c.records))
	for _, r := range c.records {
		if now.Sub(r.FetchedAt) < c.ttl {
			out = append(out, r)
		}
	}
	return out
}
