// Package recommend computes genre-affinity recommendations and serves them
// read-through from the shared cache.
package recommend

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/cache"
	"github.com/goforj/moviematch/internal/apperr"
	"github.com/goforj/moviematch/internal/catalog"
	"github.com/goforj/moviematch/internal/invalidation"
	"github.com/goforj/moviematch/internal/logging"
	"github.com/goforj/moviematch/internal/metrics"
)

// Store is the slice of the catalog the engine reads.
type Store interface {
	RatingsWithGenres(ctx context.Context, userID int64) ([]catalog.RatedMovie, error)
	FindCandidates(ctx context.Context, q catalog.CandidateQuery) ([]catalog.Movie, error)
}

// Config tunes the engine.
type Config struct {
	// TTL of a cached movie list. Default: 600s
	TTL time.Duration
	// CandidateLimit caps the number of recommended movies. Default: 5
	CandidateLimit int
	// HighRatingThreshold is the minimum score counted toward favorites. Default: 4
	HighRatingThreshold int
	// CaseInsensitive folds case when matching favorite genres.
	CaseInsensitive bool
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 600 * time.Second
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 5
	}
	if c.HighRatingThreshold <= 0 {
		c.HighRatingThreshold = 4
	}
	return c
}

type Engine struct {
	store       Store
	cache       *cache.Cache
	invalidator *invalidation.Invalidator
	logger      zerolog.Logger
	cfg         Config
}

func NewEngine(store Store, c *cache.Cache, inv *invalidation.Invalidator, logger zerolog.Logger, cfg Config) *Engine {
	return &Engine{
		store:       store,
		cache:       c,
		invalidator: inv,
		logger:      logging.Component(logger, "recommend"),
		cfg:         cfg.withDefaults(),
	}
}

// Recommend returns userID's recommendations, from the cache when a valid
// entry exists. Only non-empty movie lists are cached.
func (e *Engine) Recommend(ctx context.Context, userID int64) (Result, error) {
	log := logging.Ctx(ctx, e.logger).With().Int64("user_id", userID).Logger()
	key := invalidation.Key(userID)

	cached, ok, err := cache.GetJSON[Result](ctx, e.cache, key)
	if err != nil {
		log.Warn().Err(err).Msg("recommendation cache read failed; recomputing")
	} else if ok {
		metrics.RecommendationOutcomes.WithLabelValues("cache_hit").Inc()
		return cached, nil
	}

	rated, err := e.store.RatingsWithGenres(ctx, userID)
	if err != nil {
		metrics.RecommendationOutcomes.WithLabelValues("error").Inc()
		return Result{}, apperr.Persistence("failed to load ratings", err)
	}

	var liked []string
	exclude := make([]int64, 0, len(rated))
	for _, r := range rated {
		exclude = append(exclude, r.MovieID)
		if r.Score >= e.cfg.HighRatingThreshold {
			liked = append(liked, r.Genre)
		}
	}
	if len(liked) == 0 {
		metrics.RecommendationOutcomes.WithLabelValues("not_enough_data").Inc()
		return MessageResult(MessageNotEnoughData), nil
	}

	counts := Tally(liked)
	if len(counts) == 0 {
		metrics.RecommendationOutcomes.WithLabelValues("no_genres").Inc()
		return MessageResult(MessageNoGenres), nil
	}
	favorites := Favorites(counts)
	log.Debug().
		Int("high_rated", len(liked)).
		Interface("genre_counts", counts).
		Strs("favorites", favorites).
		Msg("favorite genres")

	candidates, err := e.store.FindCandidates(ctx, catalog.CandidateQuery{
		Genres:          favorites,
		ExcludeIDs:      exclude,
		Limit:           e.cfg.CandidateLimit,
		CaseInsensitive: e.cfg.CaseInsensitive,
	})
	if err != nil {
		metrics.RecommendationOutcomes.WithLabelValues("error").Inc()
		return Result{}, apperr.Persistence("failed to load candidate movies", err)
	}
	movies := candidates[:0]
	for _, m := range candidates {
		if m.ID != 0 {
			movies = append(movies, m)
		}
	}
	if len(movies) == 0 {
		metrics.RecommendationOutcomes.WithLabelValues("no_candidates").Inc()
		return MessageResult(MessageNoCandidates), nil
	}

	out := Result{Movies: movies}
	if err := cache.SetJSON(ctx, e.cache, key, out, e.cfg.TTL); err != nil {
		log.Warn().Err(err).Msg("recommendation cache write failed; returning computed result")
	}
	metrics.RecommendationOutcomes.WithLabelValues("computed").Inc()
	return out, nil
}

// ClearCache drops userID's cached recommendations.
func (e *Engine) ClearCache(ctx context.Context, userID int64) error {
	outcome := e.invalidator.InvalidateUser(ctx, invalidation.TriggerManual, userID)
	if !outcome.Succeeded() {
		return outcome.Err
	}
	return nil
}
