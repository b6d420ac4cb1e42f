package pool

import (
	"fmt"
	"strings"

	"github.com/actuallystonmai/content-roulette/internal/domain"
)

// Selection is what the user asked the roulette for.
type Selection struct {
	Kind    domain.MediaKind
	Filters domain.Filters
}

// Key identifies one pool. Bumping Generation forces a fresh pool for the same filters.
type Key struct {
	Selection
	Generation int
}

func (k Key) String() string {
	genre := strings.ToLower(k.Filters.Genre)
	if genre == "" {
		genre = "all"
	}
	year, rating := "all", "all"
	if k.Filters.Year > 0 {
		year = fmt.Sprint(k.Filters.Year)
	}
	if k.Filters.MinRating > 0 {
		rating = fmt.Sprint(k.Filters.MinRating)
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s-%d", k.Kind, genre, year, rating, strings.ToLower(k.Filters.Actor), k.Generation)
}
