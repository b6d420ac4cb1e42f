// Package model estimates movie runtimes when the catalog listing has none.
package model

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

const (
	defaultGenreMinutes = 110
	minimumMinutes      = 80
	jitterMinutes       = 15
)

// Typical runtime in minutes per catalog genre code
var genreMinutes = map[int]int{
	28:    115, // action
	12:    125, // adventure
	16:    95,  // animation
	35:    105, // comedy
	80:    110, // crime
	99:    95,  // documentary
	18:    120, // drama
	10751: 110, // family
	14:    120, // fantasy
	36:    110, // history
	27:    95,  // horror
	10402: 105, // music
	9648:  110, // mystery
	10749: 110, // romance
	878:   115, // scifi
	53:    105, // thriller
	10752: 130, // war
}

type DurationEstimator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewDurationEstimator(src rand.Source) *DurationEstimator {
	return &DurationEstimator{rng: rand.New(src)}
}

// EstimateMinutes returns a plausible runtime for a movie. year <= 0 means unknown.
func (e *DurationEstimator) EstimateMinutes(genreCodes []int, year int) int {
	minutes := calculateBaseline(genreCodes) + calculateEraOffset(year)

	e.mu.Lock()
	jitter := e.rng.Intn(2*jitterMinutes+1) - jitterMinutes
	e.mu.Unlock()

	minutes += jitter
	if minutes < minimumMinutes {
		minutes = minimumMinutes
	}
	return minutes
}

func (e *DurationEstimator) Estimate(genreCodes []int, year int) string {
	return FormatRuntime(e.EstimateMinutes(genreCodes, year))
}

func calculateBaseline(genreCodes []int) int {
	if len(genreCodes) == 0 {
		return defaultGenreMinutes
	}
	total := 0
	for _, code := range genreCodes {
		m, ok := genreMinutes[code]
		if !ok {
			m = defaultGenreMinutes
		}
		total += m
	}
	return int(math.Floor(float64(total)/float64(len(genreCodes)) + 0.5))
}

// Recent movies run longer
func calculateEraOffset(year int) int {
	offset := 0
	if year >= 2010 {
		offset += 10
	}
	if year >= 2020 {
		offset += 5
	}
	return offset
}

// FormatRuntime renders minutes as "2h 10min" or "45min".
func FormatRuntime(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	h, m := minutes/60, minutes%60
	if h == 0 {
		return fmt.Sprintf("%dmin", m)
	}
	return fmt.Sprintf("%dh %dmin", h, m)
}
