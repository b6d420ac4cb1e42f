package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/pool"
	"github.com/actuallystonmai/content-roulette/internal/repository"
)

type fakeCatalog struct {
	failKind domain.MediaKind
}

func (f *fakeCatalog) Discover(_ context.Context, kind domain.MediaKind, _ domain.Filters, page int, _ string) (*domain.Page, error) {
	if kind == f.failKind {
		return nil, errors.New("HTTP 500: boom")
	}
	items := make([]domain.Item, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, domain.Item{ID: int64(page*100 + i), MediaKind: kind, Title: "t"})
	}
	total := 1000
	if kind == domain.Series {
		total = 400
	}
	return &domain.Page{Items: items, Page: page, TotalPages: 50, TotalCount: total}, nil
}

func (f *fakeCatalog) SearchByActorName(_ context.Context, name string, _ domain.MediaKind) (*domain.ActorResults, error) {
	return nil, domain.ErrActorNotFound
}

func (f *fakeCatalog) GetDetails(_ context.Context, id int64, kind domain.MediaKind) (*domain.Item, error) {
	return &domain.Item{ID: id, MediaKind: kind, Trailer: "yt"}, nil
}

func newTestService(store repository.Store) *Service {
	cfg := pool.DefaultConfig()
	cfg.DispatchStagger = 0
	cfg.DrawInterval = 0
	return NewService(cfg, &fakeCatalog{}, store, WithRand(func() *rand.Rand {
		return rand.New(rand.NewSource(7))
	}))
}

func TestDrawIsScopedPerSession(t *testing.T) {
	svc := newTestService(repository.NewMemoryStore())
	ctx := context.Background()
	sel := pool.Selection{Kind: domain.Movie}

	for i := 0; i < 3; i++ {
		item, err := svc.Draw(ctx, "a", sel)
		if err != nil {
			t.Fatal(err)
		}
		if item.Trailer != "yt" {
			t.Errorf("expected enriched item, got %+v", item)
		}
	}
	if _, err := svc.Draw(ctx, "b", sel); err != nil {
		t.Fatal(err)
	}

	seenA, _ := svc.Seen(ctx, "a")
	seenB, _ := svc.Seen(ctx, "b")
	if seenA != 3 || seenB != 1 {
		t.Errorf("expected seen 3/1, got %d/%d", seenA, seenB)
	}
	if svc.Sessions() != 2 {
		t.Errorf("expected 2 sessions, got %d", svc.Sessions())
	}
}

func TestSessionRestoredFromStore(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	first := newTestService(store)
	if _, err := first.Draw(ctx, "a", pool.Selection{Kind: domain.Movie}); err != nil {
		t.Fatal(err)
	}

	second := newTestService(store)
	seen, err := second.Seen(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if seen != 1 {
		t.Errorf("expected restored seen set, got %d", seen)
	}
}

func TestResetKeepsLibrary(t *testing.T) {
	svc := newTestService(repository.NewMemoryStore())
	ctx := context.Background()

	item, err := svc.Draw(ctx, "a", pool.Selection{Kind: domain.Movie})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ToggleFavorite(ctx, "a", item); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reset(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	seen, _ := svc.Seen(ctx, "a")
	lib, _ := svc.Library(ctx, "a")
	if seen != 0 {
		t.Errorf("expected empty seen set, got %d", seen)
	}
	if len(lib.Favorites) != 1 {
		t.Errorf("expected favorite to survive reset, got %v", lib.Favorites)
	}
}

func TestToggleFavoriteAndWatched(t *testing.T) {
	svc := newTestService(repository.NewMemoryStore())
	ctx := context.Background()
	item := domain.Item{ID: 5, Title: "x"}

	added, err := svc.ToggleFavorite(ctx, "a", item)
	if err != nil || !added {
		t.Fatalf("expected favorite added, got %v %v", added, err)
	}
	added, _ = svc.ToggleFavorite(ctx, "a", item)
	if added {
		t.Error("second toggle should remove")
	}

	if added, _ := svc.ToggleWatched(ctx, "a", item); !added {
		t.Error("expected watched added")
	}

	lib, err := svc.Library(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(lib.Favorites) != 0 || len(lib.Watched) != 1 {
		t.Errorf("unexpected library %+v", lib)
	}
}

func TestOpenExternalPushesHistory(t *testing.T) {
	svc := newTestService(repository.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < domain.HistoryLimit+5; i++ {
		if _, err := svc.OpenExternal(ctx, "a", domain.Item{ID: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	url, err := svc.OpenExternal(ctx, "a", domain.Item{ID: 3, ExternalWatchURL: "https://example.test/q"})
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://example.test/q" {
		t.Errorf("unexpected url %q", url)
	}

	lib, _ := svc.Library(ctx, "a")
	if len(lib.History) != domain.HistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", domain.HistoryLimit, len(lib.History))
	}
	if lib.History[0].ID != 3 {
		t.Errorf("expected most recent first, got %d", lib.History[0].ID)
	}
}

func TestRate(t *testing.T) {
	svc := newTestService(repository.NewMemoryStore())
	ctx := context.Background()

	if err := svc.Rate(ctx, "a", 9, 4); err != nil {
		t.Fatal(err)
	}
	if err := svc.Rate(ctx, "a", 10, 6); !errors.Is(err, domain.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}
	lib, _ := svc.Library(ctx, "a")
	if lib.Ratings[9] != 4 {
		t.Errorf("expected rating 4, got %v", lib.Ratings)
	}

	if err := svc.Rate(ctx, "a", 9, 0); err != nil {
		t.Fatal(err)
	}
	lib, _ = svc.Library(ctx, "a")
	if _, ok := lib.Ratings[9]; ok {
		t.Errorf("zero should clear the rating, got %v", lib.Ratings)
	}
}

func TestSetMuted(t *testing.T) {
	svc := newTestService(repository.NewMemoryStore())
	ctx := context.Background()

	if err := svc.SetMuted(ctx, "a", true); err != nil {
		t.Fatal(err)
	}
	lib, _ := svc.Library(ctx, "a")
	if !lib.Muted {
		t.Error("expected muted")
	}
}

func TestStats(t *testing.T) {
	svc := newTestService(repository.NewMemoryStore())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Movies != 1000 || stats.Series != 400 {
		t.Errorf("unexpected stats %+v", stats)
	}

	failing := NewService(pool.DefaultConfig(), &fakeCatalog{failKind: domain.Series}, repository.NewMemoryStore())
	if _, err := failing.Stats(context.Background()); err == nil {
		t.Error("expected error when one count fails")
	}
}

func TestEvictIdleSessions(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := pool.DefaultConfig()
	cfg.DispatchStagger = 0
	cfg.DrawInterval = 0
	svc := NewService(cfg, &fakeCatalog{}, store, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	sel := pool.Selection{Kind: domain.Movie}

	if _, err := svc.Draw(ctx, "idle", sel); err != nil {
		t.Fatal(err)
	}
	now = now.Add(40 * time.Minute)
	if _, err := svc.Draw(ctx, "busy", sel); err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Minute)

	if n := svc.EvictIdle(ctx, time.Hour); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if svc.Sessions() != 1 {
		t.Errorf("expected busy session kept, got %d live", svc.Sessions())
	}

	seen, err := svc.Seen(ctx, "idle")
	if err != nil {
		t.Fatal(err)
	}
	if seen != 1 {
		t.Errorf("evicted session should come back from the store, seen=%d", seen)
	}
}
