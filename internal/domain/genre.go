package domain

import "strings"

// Catalog genre codes and the tags they map to. Codes not listed are dropped.
var genreTags = map[int]string{
	28:    "action",
	12:    "adventure",
	16:    "animation",
	35:    "comedy",
	80:    "crime",
	99:    "documentary",
	18:    "drama",
	10751: "family",
	14:    "fantasy",
	36:    "history",
	27:    "horror",
	10402: "music",
	9648:  "mystery",
	10749: "romance",
	878:   "scifi",
	10770: "tv",
	53:    "thriller",
	10752: "war",
	37:    "western",
}

var genreCodes = func() map[string]int {
	m := make(map[string]int, len(genreTags))
	for code, tag := range genreTags {
		m[tag] = code
	}
	return m
}()

func GenreTag(code int) (string, bool) {
	tag, ok := genreTags[code]
	return tag, ok
}

func GenreCode(tag string) (int, bool) {
	code, ok := genreCodes[strings.ToLower(strings.TrimSpace(tag))]
	return code, ok
}

// Map catalog genre codes to tags, keeping order and dropping unknown codes
func GenreTags(codes []int) []string {
	tags := make([]string, 0, len(codes))
	for _, c := range codes {
		if tag, ok := genreTags[c]; ok {
			tags = append(tags, tag)
		}
	}
	return tags
}
