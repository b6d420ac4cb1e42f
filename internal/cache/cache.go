// Package cache holds catalog result pages for a fixed TTL.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/metrics"
	"github.com/rs/zerolog"
)

const DefaultTTL = 30 * time.Minute

type Entry struct {
	Items      []domain.Item `json:"items"`
	FetchedAt  time.Time     `json:"fetchedAt"`
	TotalPages int           `json:"totalPages"`
	TotalCount int           `json:"totalCount"`
}

// Store persists entries. Freshness is decided by ResultCache, not the store.
type Store interface {
	Load(ctx context.Context, key string) (*Entry, bool, error)
	Save(ctx context.Context, key string, e *Entry, ttl time.Duration) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Fingerprint identifies one catalog result page.
type Fingerprint struct {
	Query  string // empty for plain discovery
	Kind   domain.MediaKind
	Genre  string
	Year   int
	Rating int
	SortBy string
	Page   int
	From   string
	To     string
}

func (f Fingerprint) String() string {
	genre := f.Genre
	if genre == "" {
		genre = "all"
	}
	parts := []string{string(f.Kind), genre, orAll(f.Year), orAll(f.Rating), f.SortBy, strconv.Itoa(f.Page)}
	if f.Query != "" {
		parts = append([]string{f.Query}, parts...)
	}
	if f.From != "" || f.To != "" {
		parts = append(parts, f.From, f.To)
	}
	return strings.Join(parts, "-")
}

func orAll(n int) string {
	if n <= 0 {
		return "all"
	}
	return strconv.Itoa(n)
}

type ResultCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

type Option func(*ResultCache)

func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

func New(store Store, ttl time.Duration, opts ...Option) *ResultCache {
	if store == nil {
		store = NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &ResultCache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   logging.Component("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

// GetOrFetch returns the fresh entry for fp or runs produce and stores its result.
// The boolean reports a cache hit.
func (c *ResultCache) GetOrFetch(ctx context.Context, fp Fingerprint, produce func(ctx context.Context) (*Entry, error)) (*Entry, bool, error) {
	key := fp.String()

	cached, found, err := c.store.Load(ctx, key)
	if err != nil {
		c.log.Warn().Str("key", key).Err(err).Msg("cache get error")
	}
	if found && c.now().Sub(cached.FetchedAt) < c.ttl {
		metrics.ResultCacheLookups.WithLabelValues("hit").Inc()
		return cached, true, nil
	}
	metrics.ResultCacheLookups.WithLabelValues("miss").Inc()

	entry, err := produce(ctx)
	if err != nil {
		return nil, false, err
	}
	entry.FetchedAt = c.now()

	if err := c.store.Save(ctx, key, entry, c.ttl); err != nil {
		c.log.Warn().Str("key", key).Err(err).Msg("cache set error")
	}
	return entry, false, nil
}

// Sweep drops entries that are already past TTL.
func (c *ResultCache) Sweep(ctx context.Context) (int, error) {
	n, err := c.store.DeleteOlderThan(ctx, c.now().Add(-c.ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep result cache: %w", err)
	}
	return n, nil
}
