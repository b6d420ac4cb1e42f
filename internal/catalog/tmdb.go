package catalog

// Wire types for the TMDB v3 endpoints this service reads.

type tmdbListItem struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	GenreIDs     []int   `json:"genre_ids"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
}

type tmdbListResponse struct {
	Page         int            `json:"page"`
	Results      []tmdbListItem `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

type tmdbGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type tmdbCastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
}

type tmdbVideo struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

type tmdbDetails struct {
	tmdbListItem
	Genres          []tmdbGenre `json:"genres"`
	Runtime         int         `json:"runtime"`
	NumberOfSeasons int         `json:"number_of_seasons"`
	Credits         struct {
		Cast []tmdbCastMember `json:"cast"`
	} `json:"credits"`
	Videos struct {
		Results []tmdbVideo `json:"results"`
	} `json:"videos"`
}

type tmdbPerson struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	ProfilePath        string  `json:"profile_path"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
}

type tmdbPersonResponse struct {
	Results []tmdbPerson `json:"results"`
}

func (it tmdbListItem) title() string {
	if it.Title != "" {
		return it.Title
	}
	return it.Name
}

func (it tmdbListItem) releaseDate() string {
	if it.ReleaseDate != "" {
		return it.ReleaseDate
	}
	return it.FirstAirDate
}
