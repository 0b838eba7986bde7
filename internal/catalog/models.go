package catalog

import "time"

// Movie is a catalog entry. Genre is the raw "/"-delimited tag string.
type Movie struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Director  string    `json:"director"`
	Year      int       `json:"year"`
	Genre     string    `json:"genre"`
	Synopsis  *string   `json:"synopsis"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MovieInput carries the writable movie fields.
type MovieInput struct {
	Title    string
	Director string
	Year     int
	Genre    string
	Synopsis *string
}

// MovieWithRating is a movie plus the viewing user's score, nil when unrated.
type MovieWithRating struct {
	Movie
	UserRating *int `json:"userRating"`
}

// Rating is one user's score for one movie.
type Rating struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	MovieID   int64     `json:"movieId"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RatedMovie is a rating joined with its movie's genre string.
type RatedMovie struct {
	MovieID int64
	Score   int
	Genre   string
}

// MovieFilter narrows a user's movie list. Zero values are ignored.
type MovieFilter struct {
	Genre    string
	Director string
	Year     int
}

// CandidateQuery selects movies whose genre contains any of Genres and whose
// id is not in ExcludeIDs.
type CandidateQuery struct {
	Genres          []string
	ExcludeIDs      []int64
	Limit           int
	CaseInsensitive bool
}
