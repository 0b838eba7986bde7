// Package httpapi is the HTTP surface of moviematch: a chi router whose
// mounted route groups depend on the server role.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/internal/catalog"
	"github.com/goforj/moviematch/internal/config"
	"github.com/goforj/moviematch/internal/movie"
	"github.com/goforj/moviematch/internal/rating"
	"github.com/goforj/moviematch/internal/recommend"
)

type RatingService interface {
	Rate(ctx context.Context, userID, movieID int64, score int) (rating.Result, error)
}

type MovieService interface {
	Create(ctx context.Context, ownerID int64, in movie.Input) (catalog.Movie, error)
	Get(ctx context.Context, id, userID int64) (catalog.MovieWithRating, error)
	List(ctx context.Context, ownerID int64, q movie.ListQuery) (movie.Page, error)
	Update(ctx context.Context, id, userID int64, in movie.Input) (movie.UpdateResult, error)
	Delete(ctx context.Context, id, userID int64) (movie.DeleteResult, error)
}

type Recommender interface {
	Recommend(ctx context.Context, userID int64) (recommend.Result, error)
	ClearCache(ctx context.Context, userID int64) error
}

// UserValidator confirms that the token's user exists. Nil disables the check.
type UserValidator interface {
	ValidateUser(ctx context.Context, userID int64, bearer string) error
}

// Deps wires the router. Services for roles that are not served may be nil.
type Deps struct {
	Role      string
	JWTSecret string
	Ratings   RatingService
	Movies    MovieService
	Recommend Recommender
	Identity  UserValidator
	Ready     func(ctx context.Context) error
	Logger    zerolog.Logger
}

type handler struct {
	Deps
}

// NewRouter builds the handler for d.Role.
func NewRouter(d Deps) http.Handler {
	h := &handler{Deps: d}
	role := d.Role
	if role == "" {
		role = config.RoleAll
	}
	serves := func(r string) bool { return role == config.RoleAll || role == r }

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe(d.Logger))

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate([]byte(d.JWTSecret)))

		if serves(config.RoleRating) {
			r.Post("/ratings/rate", h.rate)
		}
		if serves(config.RoleRecommendation) {
			r.Get("/recommendations", h.recommendations)
			r.Delete("/recommendations/cache", h.clearRecommendations)
		}
		if serves(config.RoleMovie) {
			r.Route("/movies", func(r chi.Router) {
				r.Post("/", h.createMovie)
				r.Get("/", h.listMovies)
				r.Get("/{id}", h.getMovie)
				r.Put("/{id}", h.updateMovie)
				r.Delete("/{id}", h.deleteMovie)
			})
		}
	})
	return r
}
