package recommend

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/goforj/moviematch/internal/catalog"
)

// Informational outcomes. They are successful responses, not errors.
const (
	MessageNotEnoughData = "not enough data to recommend movies"
	MessageNoGenres      = "no genres found to recommend movies"
	MessageNoCandidates  = "no new recommendations found"
)

var (
	errEmptyResult    = errors.New("recommendation result has no movies and no message")
	errMalformedShape = errors.New("recommendation result is neither a movie list nor a message")
)

// Result is either a list of movies or an informational message. On the wire
// it is a JSON array or an object with a "message" field.
type Result struct {
	Movies  []catalog.Movie
	Message string
}

// MessageResult builds an informational result.
func MessageResult(msg string) Result { return Result{Message: msg} }

// IsMessage reports whether the result carries a message instead of movies.
func (r Result) IsMessage() bool { return r.Message != "" }

func (r Result) MarshalJSON() ([]byte, error) {
	if r.IsMessage() {
		return json.Marshal(struct {
			Message string `json:"message"`
		}{r.Message})
	}
	movies := r.Movies
	if movies == nil {
		movies = []catalog.Movie{}
	}
	return json.Marshal(movies)
}

// UnmarshalJSON accepts a non-empty movie array or an object with a non-empty
// "message". Anything else, null and [] included, is an error so a cached
// entry of that shape is treated as a miss.
func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errMalformedShape
	}
	switch data[0] {
	case '[':
		var movies []catalog.Movie
		if err := json.Unmarshal(data, &movies); err != nil {
			return err
		}
		if len(movies) == 0 {
			return errEmptyResult
		}
		*r = Result{Movies: movies}
		return nil
	case '{':
		var msg struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		if msg.Message == "" {
			return errEmptyResult
		}
		*r = Result{Message: msg.Message}
		return nil
	}
	return errMalformedShape
}
