package pool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/repository"
)

// fakeCatalog serves pages of distinct ids drawn from a fixed universe.
type fakeCatalog struct {
	mu       sync.Mutex
	universe int
	perPage  int
	calls    int
	// the first failFirst queries error out; negative fails them all
	failFirst int
}

func (f *fakeCatalog) Discover(_ context.Context, kind domain.MediaKind, _ domain.Filters, page int, _ string) (*domain.Page, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failFirst < 0 || f.calls <= f.failFirst
	f.mu.Unlock()

	if fail {
		return nil, errors.New("HTTP 500: boom")
	}
	items := make([]domain.Item, 0, f.perPage)
	for i := 0; i < f.perPage; i++ {
		id := int64(((page-1)*f.perPage+i)%f.universe + 1)
		items = append(items, domain.Item{ID: id, MediaKind: kind, Title: "t"})
	}
	return &domain.Page{Items: items, Page: page, TotalPages: 100}, nil
}

func (f *fakeCatalog) SearchByActorName(_ context.Context, name string, kind domain.MediaKind) (*domain.ActorResults, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if name == "nobody" {
		return nil, domain.ErrActorNotFound
	}
	return &domain.ActorResults{ActorName: name, Items: []domain.Item{{ID: 901}, {ID: 902}}}, nil
}

func (f *fakeCatalog) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePreloader struct {
	mu        sync.Mutex
	preloaded []int64
}

func (p *fakePreloader) Preload(_ context.Context, item domain.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preloaded = append(p.preloaded, item.ID)
}

func (p *fakePreloader) Load(_ context.Context, item domain.Item) domain.Item {
	item.Trailer = "trailer"
	return item
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DispatchStagger = 0
	cfg.DrawInterval = 0
	return cfg
}

func newTestManager(t *testing.T, cat Catalog, state *repository.State) (*Manager, *fakePreloader) {
	t.Helper()
	pre := &fakePreloader{}
	m := NewManager(testConfig(), cat, pre, state, rand.New(rand.NewSource(3)))
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m, pre
}

func movieSelection() Selection {
	return Selection{Kind: domain.Movie}
}

func TestDrawNeverRepeats(t *testing.T) {
	cat := &fakeCatalog{universe: 5000, perPage: 20}
	m, pre := newTestManager(t, cat, repository.NewState(repository.NewMemoryStore(), "s"))
	ctx := context.Background()

	const draws = 150
	shown := make(map[int64]bool)
	for i := 0; i < draws; i++ {
		item, err := m.Draw(ctx, movieSelection())
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if shown[item.ID] {
			t.Fatalf("draw %d repeated id %d", i, item.ID)
		}
		shown[item.ID] = true
		if item.Trailer != "trailer" {
			t.Errorf("expected detailed item, got %+v", item)
		}
	}
	if m.Seen() != draws {
		t.Errorf("expected %d seen ids, got %d", draws, m.Seen())
	}
	if len(pre.preloaded) == 0 {
		t.Error("expected pool refills to preload items")
	}
}

func TestDrawPersistsSeenSet(t *testing.T) {
	store := repository.NewMemoryStore()
	cat := &fakeCatalog{universe: 5000, perPage: 20}
	m, _ := newTestManager(t, cat, repository.NewState(store, "s"))
	ctx := context.Background()

	first, err := m.Draw(ctx, movieSelection())
	if err != nil {
		t.Fatal(err)
	}

	st := repository.NewState(store, "s")
	seen, _ := st.SeenIDs(ctx)
	recent, _ := st.RecentIDs(ctx)
	if len(seen) != 1 || seen[0] != first.ID || len(recent) != 1 || recent[0] != first.ID {
		t.Errorf("expected persisted seen/recent [%d], got %v %v", first.ID, seen, recent)
	}

	restored, _ := newTestManager(t, cat, st)
	if restored.Seen() != 1 {
		t.Errorf("expected restored seen set of 1, got %d", restored.Seen())
	}
}

func TestDrawRegeneratesThenGivesUp(t *testing.T) {
	const universe = 12
	cat := &fakeCatalog{universe: universe, perPage: universe}
	m, _ := newTestManager(t, cat, repository.NewState(repository.NewMemoryStore(), "s"))
	ctx := context.Background()

	for i := 0; i < universe; i++ {
		if _, err := m.Draw(ctx, movieSelection()); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}
	if m.Seen() != universe {
		t.Fatalf("expected whole universe seen, got %d", m.Seen())
	}

	before := cat.Calls()
	_, err := m.Draw(ctx, movieSelection())
	if !errors.Is(err, domain.ErrNoNewContent) {
		t.Fatalf("expected ErrNoNewContent, got %v", err)
	}
	if m.Seen() != universe {
		t.Errorf("exhausted draw must not mutate the seen set, got %d", m.Seen())
	}

	// the current pool is kept, every regeneration attempt refills
	cfg := testConfig()
	want := cfg.PoolPages * cfg.RegenerateAttempts
	if got := cat.Calls() - before; got != want {
		t.Errorf("expected %d catalog queries, got %d", want, got)
	}
}

func TestResetAllowsRedrawAndKeepsLibrary(t *testing.T) {
	ctx := context.Background()
	st := repository.NewState(repository.NewMemoryStore(), "s")
	st.SaveFavorites(ctx, []domain.Item{{ID: 77}})
	st.SaveRatings(ctx, map[int64]int{77: 4})

	cat := &fakeCatalog{universe: 3, perPage: 3}
	m, _ := newTestManager(t, cat, st)

	for i := 0; i < 3; i++ {
		if _, err := m.Draw(ctx, movieSelection()); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}
	if _, err := m.Draw(ctx, movieSelection()); !errors.Is(err, domain.ErrNoNewContent) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	if err := m.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Seen() != 0 {
		t.Errorf("expected empty seen set after reset, got %d", m.Seen())
	}
	if _, err := m.Draw(ctx, movieSelection()); err != nil {
		t.Errorf("expected draw after reset, got %v", err)
	}

	favs, _ := st.Favorites(ctx)
	ratings, _ := st.Ratings(ctx)
	if len(favs) != 1 || ratings[77] != 4 {
		t.Errorf("reset touched library: favorites=%v ratings=%v", favs, ratings)
	}
}

func TestDrawSkipsWatchedAndHistory(t *testing.T) {
	ctx := context.Background()
	st := repository.NewState(repository.NewMemoryStore(), "s")
	st.SaveWatched(ctx, []domain.Item{{ID: 1}, {ID: 2}})
	st.SaveHistory(ctx, []domain.Item{{ID: 3}})

	cat := &fakeCatalog{universe: 6, perPage: 6}
	m, _ := newTestManager(t, cat, st)

	got := make(map[int64]bool)
	for i := 0; i < 3; i++ {
		item, err := m.Draw(ctx, movieSelection())
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		got[item.ID] = true
	}
	for _, id := range []int64{1, 2, 3} {
		if got[id] {
			t.Errorf("drew excluded id %d", id)
		}
	}
	if _, err := m.Draw(ctx, movieSelection()); !errors.Is(err, domain.ErrNoNewContent) {
		t.Errorf("expected exhaustion once only excluded ids remain, got %v", err)
	}
}

func TestDrawToleratesPartialRefillFailure(t *testing.T) {
	cat := &fakeCatalog{universe: 5000, perPage: 20, failFirst: 3}
	m, _ := newTestManager(t, cat, repository.NewState(repository.NewMemoryStore(), "s"))

	for i := 0; i < 10; i++ {
		if _, err := m.Draw(context.Background(), movieSelection()); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}
	if cat.Calls() != testConfig().PoolPages {
		t.Errorf("expected a single refill, got %d queries", cat.Calls())
	}
}

// scriptedCatalog answers each discovery call through serve, numbered from 1.
type scriptedCatalog struct {
	mu    sync.Mutex
	calls int
	serve func(call, page int) ([]domain.Item, error)
}

func (c *scriptedCatalog) Discover(_ context.Context, _ domain.MediaKind, _ domain.Filters, page int, _ string) (*domain.Page, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()

	items, err := c.serve(call, page)
	if err != nil {
		return nil, err
	}
	return &domain.Page{Items: items, Page: page, TotalPages: 100}, nil
}

func (c *scriptedCatalog) SearchByActorName(context.Context, string, domain.MediaKind) (*domain.ActorResults, error) {
	return nil, domain.ErrActorNotFound
}

func (c *scriptedCatalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRegenerationSkipsFailedBatch(t *testing.T) {
	pages := DefaultConfig().PoolPages
	cat := &scriptedCatalog{serve: func(call, page int) ([]domain.Item, error) {
		switch {
		case call <= pages:
			return []domain.Item{{ID: 1}, {ID: 2}, {ID: 3}}, nil
		case call <= 2*pages:
			return nil, errors.New("HTTP 503: down")
		default:
			return []domain.Item{{ID: int64(100 + call)}}, nil
		}
	}}
	m, _ := newTestManager(t, cat, repository.NewState(repository.NewMemoryStore(), "s"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Draw(ctx, movieSelection()); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}

	item, err := m.Draw(ctx, movieSelection())
	if err != nil {
		t.Fatalf("expected the next generation to be drawn from, got %v", err)
	}
	if item.ID <= 100 {
		t.Errorf("expected a fresh title, got %d", item.ID)
	}
	if got := cat.Calls(); got != 3*pages {
		t.Errorf("expected %d queries, got %d", 3*pages, got)
	}
	if m.Seen() != 4 {
		t.Errorf("expected 4 seen ids, got %d", m.Seen())
	}
}

func TestRegenerationFailingEveryBatch(t *testing.T) {
	cfg := testConfig()
	cat := &scriptedCatalog{serve: func(call, page int) ([]domain.Item, error) {
		if call <= cfg.PoolPages {
			return []domain.Item{{ID: 1}}, nil
		}
		return nil, errors.New("HTTP 503: down")
	}}
	m, _ := newTestManager(t, cat, repository.NewState(repository.NewMemoryStore(), "s"))
	ctx := context.Background()

	if _, err := m.Draw(ctx, movieSelection()); err != nil {
		t.Fatal(err)
	}
	_, err := m.Draw(ctx, movieSelection())
	if !errors.Is(err, domain.ErrNoNewContent) {
		t.Errorf("expected ErrNoNewContent, got %v", err)
	}
	if got := cat.Calls(); got != cfg.PoolPages*(cfg.RegenerateAttempts+1) {
		t.Errorf("expected every attempt to run, got %d queries", got)
	}
	if m.Seen() != 1 {
		t.Errorf("seen set changed: %d", m.Seen())
	}
}

// Only the very first fill of a pool reports an outage.
func TestDrawSurfacesTotalRefillFailure(t *testing.T) {
	cat := &fakeCatalog{universe: 10, perPage: 5, failFirst: -1}
	m, _ := newTestManager(t, cat, repository.NewState(repository.NewMemoryStore(), "s"))

	_, err := m.Draw(context.Background(), movieSelection())
	if err == nil || errors.Is(err, domain.ErrNoContent) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestDrawByActor(t *testing.T) {
	cat := &fakeCatalog{universe: 10, perPage: 5}
	m, _ := newTestManager(t, cat, repository.NewState(repository.NewMemoryStore(), "s"))
	ctx := context.Background()

	sel := Selection{Kind: domain.Movie, Filters: domain.Filters{Actor: "Tom Cruise"}}
	item, err := m.Draw(ctx, sel)
	if err != nil {
		t.Fatal(err)
	}
	if item.ID != 901 && item.ID != 902 {
		t.Errorf("expected actor title, got %d", item.ID)
	}

	_, err = m.Draw(ctx, Selection{Kind: domain.Movie, Filters: domain.Filters{Actor: "nobody"}})
	if !errors.Is(err, domain.ErrActorNotFound) {
		t.Errorf("expected ErrActorNotFound, got %v", err)
	}
}

func TestDrawDebounced(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.DrawInterval = 500 * time.Millisecond
	cat := &fakeCatalog{universe: 5000, perPage: 20}
	m := NewManager(cfg, cat, &fakePreloader{}, repository.NewState(repository.NewMemoryStore(), "s"),
		rand.New(rand.NewSource(1)), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := m.Draw(ctx, movieSelection()); err != nil {
		t.Fatal(err)
	}

	now = now.Add(100 * time.Millisecond)
	if _, err := m.Draw(ctx, movieSelection()); !errors.Is(err, domain.ErrDrawIgnored) {
		t.Fatalf("expected ignored draw, got %v", err)
	}
	if m.Seen() != 1 {
		t.Errorf("ignored draw changed state: seen=%d", m.Seen())
	}

	now = now.Add(500 * time.Millisecond)
	if _, err := m.Draw(ctx, movieSelection()); err != nil {
		t.Errorf("expected draw after interval, got %v", err)
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(500 * time.Millisecond)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if !d.TryAcquire(t0) {
		t.Fatal("first call should pass")
	}
	if d.TryAcquire(t0.Add(499 * time.Millisecond)) {
		t.Error("call inside interval should be rejected")
	}
	if !d.TryAcquire(t0.Add(600 * time.Millisecond)) {
		t.Error("call after interval should pass")
	}
	if d.TryAcquire(t0.Add(700 * time.Millisecond)) {
		t.Error("interval restarts from the last accepted call")
	}
}

func TestKeyString(t *testing.T) {
	k := Key{Selection: Selection{Kind: domain.Series, Filters: domain.Filters{Genre: "Drama", Year: 2020}}, Generation: 2}
	if got := k.String(); got != "series-drama-2020-all--2" {
		t.Errorf("unexpected key %q", got)
	}
}
