package details

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/repository"
)

type fakeLoader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLoader) GetDetails(_ context.Context, id int64, kind domain.MediaKind) (*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Item{
		ID:        id,
		MediaKind: kind,
		Title:     "detailed title",
		Trailer:   "yt-key",
		Cast:      []domain.CastMember{{ID: 1, Name: "Lead"}},
		Duration:  "2h 1min",
	}, nil
}

func (f *fakeLoader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func baseItem() domain.Item {
	return domain.Item{ID: 10, MediaKind: domain.Movie, Title: "list title", Duration: "1h 50min", Categories: []string{"drama"}}
}

func TestLoadMergesAndCaches(t *testing.T) {
	loader := &fakeLoader{}
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(loader, nil, WithClock(clk.Now))
	ctx := context.Background()

	got := c.Load(ctx, baseItem())
	if got.Trailer != "yt-key" || len(got.Cast) != 1 || got.Duration != "2h 1min" {
		t.Errorf("expected enrichment merged, got %+v", got)
	}
	if got.Title != "list title" || len(got.Categories) != 1 {
		t.Errorf("list-level fields should be kept, got %+v", got)
	}

	clk.t = clk.t.Add(DefaultTTL - time.Second)
	c.Load(ctx, baseItem())
	if loader.Calls() != 1 {
		t.Errorf("expected cached record within TTL, calls=%d", loader.Calls())
	}

	clk.t = clk.t.Add(2 * time.Second)
	c.Load(ctx, baseItem())
	if loader.Calls() != 2 {
		t.Errorf("expected refetch after TTL, calls=%d", loader.Calls())
	}
}

func TestLoadKeepsBaseFieldsWhenDetailsEmpty(t *testing.T) {
	out := merge(baseItem(), "", nil, "")
	if out.Duration != "1h 50min" || out.Trailer != "" || out.Cast != nil {
		t.Errorf("empty detail values should not overwrite, got %+v", out)
	}
}

func TestLoadFailureReturnsOriginal(t *testing.T) {
	loader := &fakeLoader{err: errors.New("HTTP 500: boom")}
	c := New(loader, nil)

	in := baseItem()
	got := c.Load(context.Background(), in)
	if got.Title != in.Title || got.Trailer != "" || got.Duration != in.Duration {
		t.Errorf("expected the input item back on failure, got %+v", got)
	}
}

func TestPreloadFeedsLoad(t *testing.T) {
	loader := &fakeLoader{}
	c := New(loader, nil)
	ctx := context.Background()

	c.Preload(ctx, baseItem())
	c.Preload(ctx, baseItem())
	c.Wait()
	if loader.Calls() != 1 {
		t.Fatalf("expected one preload fetch, got %d", loader.Calls())
	}

	c.Preload(ctx, baseItem())
	c.Wait()
	if loader.Calls() != 1 {
		t.Errorf("already preloaded item should be skipped, calls=%d", loader.Calls())
	}

	got := c.Load(ctx, baseItem())
	if got.Trailer != "yt-key" {
		t.Errorf("expected preloaded trailer, got %+v", got)
	}
	if loader.Calls() != 1 {
		t.Errorf("load should use preloaded details, calls=%d", loader.Calls())
	}
}

func TestPreloadSkipsItemsWithTrailer(t *testing.T) {
	loader := &fakeLoader{}
	c := New(loader, nil)

	item := baseItem()
	item.Trailer = "already"
	c.Preload(context.Background(), item)
	c.Wait()
	if loader.Calls() != 0 {
		t.Errorf("expected no fetch for item with trailer, calls=%d", loader.Calls())
	}
}

func TestPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	loader := &fakeLoader{}

	first := New(loader, repository.NewState(store, "s1"))
	first.Load(ctx, baseItem())

	second := New(loader, repository.NewState(store, "s1"))
	if err := second.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	got := second.Load(ctx, baseItem())
	if got.Trailer != "yt-key" {
		t.Errorf("expected restored record, got %+v", got)
	}
	if loader.Calls() != 1 {
		t.Errorf("restored record should avoid a fetch, calls=%d", loader.Calls())
	}
}

func TestMovieAndSeriesWithSameIDAreSeparate(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	loader := &fakeLoader{}

	c := New(loader, repository.NewState(store, "s1"))
	movie := c.Load(ctx, baseItem())
	series := c.Load(ctx, domain.Item{ID: baseItem().ID, MediaKind: domain.Series, Title: "a series"})
	if series.MediaKind != domain.Series || series.Title != "a series" {
		t.Errorf("series got the movie record: %+v", series)
	}
	if movie.MediaKind != domain.Movie || loader.Calls() != 2 {
		t.Errorf("expected one fetch per kind, calls=%d", loader.Calls())
	}

	restored := New(loader, repository.NewState(store, "s1"))
	if err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if got := restored.Load(ctx, baseItem()); got.MediaKind != domain.Movie || got.Title != "list title" {
		t.Errorf("unexpected restored movie %+v", got)
	}
	if got := restored.Load(ctx, domain.Item{ID: baseItem().ID, MediaKind: domain.Series}); got.MediaKind != domain.Series {
		t.Errorf("unexpected restored series %+v", got)
	}
	if loader.Calls() != 2 {
		t.Errorf("both kinds should restore without a fetch, calls=%d", loader.Calls())
	}
}
