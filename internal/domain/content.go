package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

type MediaKind string

const (
	Movie  MediaKind = "movie"
	Series MediaKind = "series"
)

// Parse media kind from query values, "tv" is accepted for series
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "movie", "movies":
		return Movie, nil
	case "tv", "series", "show":
		return Series, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Path segment used by the remote catalog
func (k MediaKind) RemotePath() string {
	if k == Series {
		return "tv"
	}
	return "movie"
}

// Year is a release year, zero when the catalog had no date.
type Year int

const UnknownYear Year = 0

func (y Year) Known() bool {
	return y != UnknownYear
}

func (y Year) MarshalJSON() ([]byte, error) {
	if !y.Known() {
		return []byte(`"unknown"`), nil
	}
	return []byte(strconv.Itoa(int(y))), nil
}

func (y *Year) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*y = Year(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode year: %w", err)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*y = UnknownYear
		return nil
	}
	*y = Year(n)
	return nil
}

type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	ProfilePath string `json:"profilePath,omitempty"`
}

type Item struct {
	ID               int64        `json:"id"`
	MediaKind        MediaKind    `json:"type"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Image            string       `json:"image"`
	Backdrop         string       `json:"backdrop,omitempty"`
	Categories       []string     `json:"categories"`
	Year             Year         `json:"year"`
	Rating           float64      `json:"rating"`
	Duration         string       `json:"duration,omitempty"`
	Seasons          string       `json:"seasons,omitempty"`
	Trailer          string       `json:"trailer,omitempty"`
	Cast             []CastMember `json:"cast,omitempty"`
	ExternalWatchURL string       `json:"externalWatchUrl"`
	ReleaseDate      string       `json:"releaseDate,omitempty"`
}

type Person struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ProfilePath string  `json:"profilePath,omitempty"`
	Department  string  `json:"knownForDepartment,omitempty"`
	Popularity  float64 `json:"popularity"`
}

// Filters narrow a discovery query. Zero values mean "all".
type Filters struct {
	Genre     string
	Year      int
	MinRating int
	Actor     string
}

type Page struct {
	Items      []Item
	Page       int
	TotalPages int
	TotalCount int
	Cached     bool
}

func (p *Page) HasMore() bool {
	return p.Page < p.TotalPages
}

type ActorResults struct {
	ActorName string
	Items     []Item
}
