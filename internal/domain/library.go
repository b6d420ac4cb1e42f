package domain

const HistoryLimit = 50

// Library is the per-session record of what the user kept, rated or opened.
type Library struct {
	Favorites []Item        `json:"favorites"`
	Watched   []Item        `json:"watched"`
	History   []Item        `json:"history"`
	Ratings   map[int64]int `json:"ratings"`
	Muted     bool          `json:"muted"`
}

// Push item to the front of history, removing an older copy and capping length
func PushHistory(history []Item, item Item) []Item {
	out := make([]Item, 0, len(history)+1)
	out = append(out, item)
	for _, h := range history {
		if h.ID == item.ID {
			continue
		}
		out = append(out, h)
		if len(out) == HistoryLimit {
			break
		}
	}
	return out
}

// Add item if absent, remove it if present. Returns true when added.
func ToggleItem(items []Item, item Item) ([]Item, bool) {
	for i, it := range items {
		if it.ID == item.ID {
			return append(items[:i:i], items[i+1:]...), false
		}
	}
	return append(items, item), true
}

func ContainsItem(items []Item, id int64) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
