// Package rating records a user's score for a movie and invalidates that
// user's cached recommendations after the write commits.
package rating

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/internal/apperr"
	"github.com/goforj/moviematch/internal/catalog"
	"github.com/goforj/moviematch/internal/invalidation"
	"github.com/goforj/moviematch/internal/logging"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Store is the slice of the catalog used by the write path.
type Store interface {
	GetMovie(ctx context.Context, id int64) (catalog.Movie, error)
	FindRating(ctx context.Context, userID, movieID int64) (catalog.Rating, error)
	CreateRating(ctx context.Context, userID, movieID int64, score int) (catalog.Rating, error)
	UpdateRatingScore(ctx context.Context, id int64, score int) (catalog.Rating, error)
}

// Result is the stored rating plus what happened to the user's cache entry.
type Result struct {
	Rating       catalog.Rating
	Created      bool
	Invalidation invalidation.Outcome
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
		logger:      logging.Component(logger, "rating"),
	}
}

// Rate creates or updates userID's score for movieID. There is at most one
// rating per pair; a concurrent create that loses the race becomes an update.
func (s *Service) Rate(ctx context.Context, userID, movieID int64, score int) (Result, error) {
	if score < MinScore || score > MaxScore {
		return Result{}, apperr.Validation("score must be between 1 and 5")
	}
	if userID == 0 || movieID == 0 {
		return Result{}, apperr.Validation("user id and movie id are required")
	}

	if _, err := s.store.GetMovie(ctx, movieID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Result{}, apperr.NotFound("movie does not exist", nil)
		}
		return Result{}, apperr.Persistence("failed to load movie", err)
	}

	res, err := s.upsert(ctx, userID, movieID, score)
	if err != nil {
		return Result{}, err
	}
	res.Invalidation = s.invalidator.InvalidateUser(ctx, invalidation.TriggerRating, userID)
	logging.Ctx(ctx, s.logger).Debug().
		Int64("user_id", userID).
		Int64("movie_id", movieID).
		Int("score", score).
		Bool("created", res.Created).
		Bool("invalidated", res.Invalidation.Succeeded()).
		Msg("rating stored")
	return res, nil
}

func (s *Service) upsert(ctx context.Context, userID, movieID int64, score int) (Result, error) {
	existing, err := s.store.FindRating(ctx, userID, movieID)
	switch {
	case err == nil:
		return s.update(ctx, existing.ID, score)
	case !errors.Is(err, catalog.ErrNotFound):
		return Result{}, apperr.Persistence("failed to load rating", err)
	}

	created, err := s.store.CreateRating(ctx, userID, movieID, score)
	if err == nil {
		return Result{Rating: created, Created: true}, nil
	}
	if !errors.Is(err, catalog.ErrDuplicate) {
		return Result{}, apperr.Persistence("failed to create rating", err)
	}
	// Another request created the row between our lookup and insert.
	existing, ferr := s.store.FindRating(ctx, userID, movieID)
	if ferr != nil {
		return Result{}, apperr.Persistence("failed to create rating", errors.Join(err, ferr))
	}
	return s.update(ctx, existing.ID, score)
}

func (s *Service) update(ctx context.Context, id int64, score int) (Result, error) {
	updated, err := s.store.UpdateRatingScore(ctx, id, score)
	if err != nil {
		return Result{}, apperr.Persistence("failed to update rating", err)
	}
	return Result{Rating: updated}, nil
}
