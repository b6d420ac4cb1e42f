package domain

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestYearJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Year Year `json:"year"`
	}{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"year":"unknown"}` {
		t.Errorf("unexpected unknown year encoding: %s", b)
	}

	var v struct {
		Year Year `json:"year"`
	}
	if err := json.Unmarshal([]byte(`{"year":2021}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Year != 2021 {
		t.Errorf("expected 2021, got %d", v.Year)
	}
	if err := json.Unmarshal([]byte(`{"year":"unknown"}`), &v); err != nil {
		t.Fatalf("unmarshal unknown: %v", err)
	}
	if v.Year.Known() {
		t.Errorf("expected unknown year, got %d", v.Year)
	}
}

func TestParseMediaKind(t *testing.T) {
	tests := []struct {
		in   string
		want MediaKind
		err  bool
	}{
		{"", Movie, false},
		{"movie", Movie, false},
		{"tv", Series, false},
		{"Series", Series, false},
		{"podcast", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMediaKind(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseMediaKind(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMediaKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if Series.RemotePath() != "tv" || Movie.RemotePath() != "movie" {
		t.Error("unexpected remote paths")
	}
}

func TestGenreTags(t *testing.T) {
	tags := GenreTags([]int{28, 999999, 878})
	if len(tags) != 2 || tags[0] != "action" || tags[1] != "scifi" {
		t.Errorf("unexpected tags %v", tags)
	}
	if code, ok := GenreCode("Horror"); !ok || code != 27 {
		t.Errorf("expected horror=27, got %d %v", code, ok)
	}
	if _, ok := GenreCode("all"); ok {
		t.Error("all should not map to a genre code")
	}
}

func TestPushHistory(t *testing.T) {
	var history []Item
	for i := 1; i <= HistoryLimit+10; i++ {
		history = PushHistory(history, Item{ID: int64(i)})
	}
	if len(history) != HistoryLimit {
		t.Fatalf("expected %d entries, got %d", HistoryLimit, len(history))
	}
	if history[0].ID != int64(HistoryLimit+10) {
		t.Errorf("expected most recent first, got %d", history[0].ID)
	}

	history = PushHistory(history, Item{ID: 30})
	if history[0].ID != 30 {
		t.Errorf("expected re-opened item first, got %d", history[0].ID)
	}
	count := 0
	for _, h := range history {
		if h.ID == 30 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected one copy of item 30, got %d", count)
	}
}

func TestToggleItem(t *testing.T) {
	items, added := ToggleItem(nil, Item{ID: 1})
	if !added || len(items) != 1 {
		t.Fatalf("expected item added, got %v", items)
	}
	items, added = ToggleItem(items, Item{ID: 2})
	items, added = ToggleItem(items, Item{ID: 1})
	if added || len(items) != 1 || items[0].ID != 2 {
		t.Errorf("expected item 1 removed, got %v", items)
	}
}
