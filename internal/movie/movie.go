// Package movie manages the movie catalog on behalf of its owners. Updates
// and deletes fan out cache invalidation to every user tied to the movie.
package movie

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/internal/apperr"
	"github.com/goforj/moviematch/internal/catalog"
	"github.com/goforj/moviematch/internal/invalidation"
	"github.com/goforj/moviematch/internal/logging"
	"github.com/goforj/moviematch/internal/validate"
)

const (
	DefaultPage  = 1
	DefaultLimit = 5
)

var errNotOwned = apperr.NotFound("movie not found or unauthorized", nil)

// Store is the slice of the catalog the service needs.
type Store interface {
	GetMovieForUser(ctx context.Context, id, userID int64) (catalog.MovieWithRating, error)
	CreateMovie(ctx context.Context, ownerID int64, in catalog.MovieInput) (catalog.Movie, error)
	ListMoviesByUser(ctx context.Context, ownerID int64, f catalog.MovieFilter, limit, offset int) ([]catalog.Movie, error)
	CountMoviesByUser(ctx context.Context, ownerID int64, f catalog.MovieFilter) (int, error)
	MovieBelongsToUser(ctx context.Context, movieID, userID int64) (bool, error)
	InTx(ctx context.Context, fn func(*catalog.Tx) error) error
}

// Input is the writable part of a movie as clients send it.
type Input struct {
	Title    string  `json:"title" validate:"required,min=1"`
	Director string  `json:"director" validate:"required,min=2"`
	Year     int     `json:"year" validate:"required,gte=1900,notfuture"`
	Genre    string  `json:"genre" validate:"required,min=4"`
	Synopsis *string `json:"synopsis" validate:"omitempty,max=500"`
}

func (in Input) toCatalog() catalog.MovieInput {
	return catalog.MovieInput{
		Title:    in.Title,
		Director: in.Director,
		Year:     in.Year,
		Genre:    in.Genre,
		Synopsis: in.Synopsis,
	}
}

// ListQuery filters and pages a user's movies.
type ListQuery struct {
	Genre    string `json:"genre"`
	Director string `json:"director"`
	Year     int    `json:"year" validate:"omitempty,gte=1900"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	Limit    int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

// Page is one page of a user's movies.
type Page struct {
	TotalMovies int             `json:"totalMovies"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Movies      []catalog.Movie `json:"movies"`
}

// UpdateResult is the updated movie and the invalidations it triggered.
type UpdateResult struct {
	Movie        catalog.Movie
	Invalidation invalidation.Report
}

// DeleteResult is the deleted movie, the users tied to it at deletion time
// and the outcome of invalidating each of them.
type DeleteResult struct {
	Movie         catalog.Movie
	AffectedUsers []int64
	Invalidation  invalidation.Report
}

type Service struct {
	store       Store
	invalidator *invalidation.Invalidator
	logger      zerolog.Logger
}

func NewService(store Store, inv *invalidation.Invalidator, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		invalidator: inv,
		logger:      logging.Component(logger, "movie"),
	}
}

// Create validates in and stores it as a movie owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, in Input) (catalog.Movie, error) {
	if err := validate.Struct(in); err != nil {
		return catalog.Movie{}, err
	}
	m, err := s.store.CreateMovie(ctx, ownerID, in.toCatalog())
	if err != nil {
		return catalog.Movie{}, apperr.Persistence("failed to create movie", err)
	}
	return m, nil
}

// Get returns a movie with userID's own score, nil when unrated.
func (s *Service) Get(ctx context.Context, id, userID int64) (catalog.MovieWithRating, error) {
	m, err := s.store.GetMovieForUser(ctx, id, userID)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.MovieWithRating{}, apperr.NotFound("movie not found", nil)
	}
	if err != nil {
		return catalog.MovieWithRating{}, apperr.Persistence("failed to load movie", err)
	}
	return m, nil
}

// List pages through the movies ownerID owns, newest first.
func (s *Service) List(ctx context.Context, ownerID int64, q ListQuery) (Page, error) {
	if err := validate.Struct(q); err != nil {
		return Page{}, err
	}
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	filter := catalog.MovieFilter{Genre: q.Genre, Director: q.Director, Year: q.Year}

	movies, err := s.store.ListMoviesByUser(ctx, ownerID, filter, q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return Page{}, apperr.Persistence("failed to list movies", err)
	}
	total, err := s.store.CountMoviesByUser(ctx, ownerID, filter)
	if err != nil {
		return Page{}, apperr.Persistence("failed to count movies", err)
	}
	if movies == nil {
		movies = []catalog.Movie{}
	}
	return Page{
		TotalMovies: total,
		TotalPages:  (total + q.Limit - 1) / q.Limit,
		CurrentPage: q.Page,
		Movies:      movies,
	}, nil
}

// Update overwrites a movie userID owns. A genre change shifts the favorite
// tally of everyone who rated the movie, so all of them are invalidated.
func (s *Service) Update(ctx context.Context, id, userID int64, in Input) (UpdateResult, error) {
	if err := validate.Struct(in); err != nil {
		return UpdateResult{}, err
	}
	if err := s.requireOwner(ctx, id, userID); err != nil {
		return UpdateResult{}, err
	}

	var (
		out      UpdateResult
		affected []int64
	)
	err := s.store.InTx(ctx, func(tx *catalog.Tx) error {
		var err error
		if out.Movie, err = tx.UpdateMovie(ctx, id, in.toCatalog()); err != nil {
			return err
		}
		affected, err = invalidation.AffectedUsers(ctx, tx, id)
		return err
	})
	if errors.Is(err, catalog.ErrNotFound) {
		return UpdateResult{}, apperr.NotFound("movie not found", nil)
	}
	if err != nil {
		return UpdateResult{}, apperr.Persistence("failed to update movie", err)
	}
	out.Invalidation = s.invalidator.InvalidateUsers(ctx, invalidation.TriggerMovieUpdate, affected)
	return out, nil
}

// Delete removes a movie userID owns. A failed ownership lookup is reported
// as "movie not found", like every other delete failure.
func (s *Service) Delete(ctx context.Context, id, userID int64) (DeleteResult, error) {
	if err := s.requireOwner(ctx, id, userID); err != nil {
		if apperr.KindOf(err) == apperr.KindPersistence {
			logging.Ctx(ctx, s.logger).Error().Err(err).Int64("movie_id", id).Msg("movie delete failed")
			return DeleteResult{}, apperr.NotFound("movie not found", err)
		}
		return DeleteResult{}, err
	}
	return s.DeleteMovie(ctx, id)
}

// DeleteMovie collects every user who rated or owns the movie, deletes its
// ratings, ownership rows and the movie in one transaction, then invalidates
// each collected user. Invalidation failures are reported, not returned: the
// delete has committed by then.
//
// Any failure before commit is reported as "movie not found"; the cause is
// logged and kept in the error chain.
func (s *Service) DeleteMovie(ctx context.Context, id int64) (DeleteResult, error) {
	var out DeleteResult
	err := s.store.InTx(ctx, func(tx *catalog.Tx) error {
		var err error
		if out.AffectedUsers, err = invalidation.AffectedUsers(ctx, tx, id); err != nil {
			return err
		}
		out.Movie, err = tx.DeleteMovieCascade(ctx, id)
		return err
	})
	if err != nil {
		logging.Ctx(ctx, s.logger).Error().Err(err).Int64("movie_id", id).Msg("movie delete failed")
		return DeleteResult{}, apperr.NotFound("movie not found", err)
	}
	out.Invalidation = s.invalidator.InvalidateUsers(ctx, invalidation.TriggerMovieDelete, out.AffectedUsers)
	logging.Ctx(ctx, s.logger).Info().
		Int64("movie_id", id).
		Int("affected_users", len(out.AffectedUsers)).
		Int("invalidation_failures", len(out.Invalidation.Failed())).
		Msg("movie deleted")
	return out, nil
}

func (s *Service) requireOwner(ctx context.Context, id, userID int64) error {
	owned, err := s.store.MovieBelongsToUser(ctx, id, userID)
	if err != nil {
		return apperr.Persistence("failed to check movie ownership", err)
	}
	if !owned {
		return errNotOwned
	}
	return nil
}
