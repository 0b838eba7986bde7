package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goforj/moviematch/internal/apperr"
	"github.com/goforj/moviematch/internal/movie"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type rateRequest struct {
	MovieID int64 `json:"movieId"`
	Score   int   `json:"score"`
}

func (h *handler) rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	uid := userID(r)
	if h.Identity != nil {
		if err := h.Identity.ValidateUser(r.Context(), uid, rawToken(r)); err != nil {
			writeError(w, r, err)
			return
		}
	}
	res, err := h.Ratings.Rate(r.Context(), uid, req.MovieID, req.Score)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Rating)
}

func (h *handler) recommendations(w http.ResponseWriter, r *http.Request) {
	res, err := h.Recommend.Recommend(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) clearRecommendations(w http.ResponseWriter, r *http.Request) {
	if err := h.Recommend.ClearCache(r.Context(), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "recommendation cache cleared"})
}

func (h *handler) createMovie(w http.ResponseWriter, r *http.Request) {
	var in movie.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.Movies.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handler) listMovies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := movie.ListQuery{Genre: q.Get("genre"), Director: q.Get("director")}
	for name, dst := range map[string]*int{"year": &query.Year, "page": &query.Page, "limit": &query.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, apperr.Validation(name+" must be a number"))
			return
		}
		*dst = n
	}
	page, err := h.Movies.List(r.Context(), userID(r), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) getMovie(w http.ResponseWriter, r *http.Request) {
	id, err := movieID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.Movies.Get(r.Context(), id, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) updateMovie(w http.ResponseWriter, r *http.Request) {
	id, err := movieID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in movie.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Movies.Update(r.Context(), id, userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Movie)
}

func (h *handler) deleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := movieID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Movies.Delete(r.Context(), id, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Movie)
}

func movieID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid movie id")
	}
	return id, nil
}
