// Package invalidation keeps cached recommendations honest. Every write that
// can change a user's recommendations deletes that user's cache entry; the
// delete is best-effort but its outcome is always reported.
package invalidation

import (
	"context"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/cache"
	"github.com/goforj/moviematch/internal/logging"
	"github.com/goforj/moviematch/internal/metrics"
)

// KeyPrefix is shared by every service that reads or writes recommendations.
const KeyPrefix = "recommendations:"

// Triggers label the write that caused an invalidation.
const (
	TriggerRating      = "rating"
	TriggerMovieUpdate = "movie_update"
	TriggerMovieDelete = "movie_delete"
	TriggerManual      = "manual"
)

// Key returns the cache key holding userID's recommendations.
func Key(userID int64) string {
	return KeyPrefix + strconv.FormatInt(userID, 10)
}

// Outcome reports one user's invalidation.
type Outcome struct {
	UserID   int64
	Key      string
	Attempts int
	Err      error
}

// Attempted reports whether a delete was issued at all.
func (o Outcome) Attempted() bool { return o.Attempts > 0 }

// Succeeded reports whether the cache entry is known to be gone.
func (o Outcome) Succeeded() bool { return o.Attempts > 0 && o.Err == nil }

// Report collects the outcomes of a fan-out.
type Report struct {
	Outcomes []Outcome
}

// Failed returns the outcomes that did not succeed.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// UserIDs lists the users covered by the report, in order.
func (r Report) UserIDs() []int64 {
	out := make([]int64, len(r.Outcomes))
	for i, o := range r.Outcomes {
		out[i] = o.UserID
	}
	return out
}

// Invalidator deletes recommendation cache entries.
type Invalidator struct {
	cache    *cache.Cache
	logger   zerolog.Logger
	attempts int
}

// New builds an Invalidator that tries each delete up to attempts times.
func New(c *cache.Cache, logger zerolog.Logger, attempts int) *Invalidator {
	if attempts < 1 {
		attempts = 1
	}
	return &Invalidator{
		cache:    c,
		logger:   logging.Component(logger, "invalidation"),
		attempts: attempts,
	}
}

// InvalidateUser deletes userID's entry. Failures are logged and returned in
// the outcome, never as an error: the write that triggered them has committed.
func (inv *Invalidator) InvalidateUser(ctx context.Context, trigger string, userID int64) Outcome {
	out := Outcome{UserID: userID, Key: Key(userID)}
	for out.Attempts < inv.attempts {
		if ctx.Err() != nil && out.Attempts > 0 {
			break
		}
		out.Attempts++
		out.Err = inv.cache.Delete(ctx, out.Key)
		if out.Err == nil {
			break
		}
	}
	result := "ok"
	if out.Err != nil {
		result = "error"
		logging.Ctx(ctx, inv.logger).Warn().
			Err(out.Err).
			Str("trigger", trigger).
			Int64("user_id", userID).
			Str("key", out.Key).
			Int("attempts", out.Attempts).
			Msg("recommendation cache invalidation failed; entry expires with its ttl")
	}
	metrics.InvalidationAttempts.WithLabelValues(trigger, result).Inc()
	return out
}

// InvalidateUsers invalidates every user independently; one failure does not
// stop the rest.
func (inv *Invalidator) InvalidateUsers(ctx context.Context, trigger string, userIDs []int64) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(userIDs))}
	for _, id := range userIDs {
		report.Outcomes = append(report.Outcomes, inv.InvalidateUser(ctx, trigger, id))
	}
	if failed := len(report.Failed()); failed > 0 {
		logging.Ctx(ctx, inv.logger).Warn().
			Str("trigger", trigger).
			Int("users", len(userIDs)).
			Int("failed", failed).
			Msg("recommendation cache fan-out incomplete")
	}
	return report
}

// RelationLookup finds the users tied to a movie.
type RelationLookup interface {
	RaterIDs(ctx context.Context, movieID int64) ([]int64, error)
	OwnerIDs(ctx context.Context, movieID int64) ([]int64, error)
}

// AffectedUsers is the union of raters and owners of movieID, sorted.
func AffectedUsers(ctx context.Context, lookup RelationLookup, movieID int64) ([]int64, error) {
	raters, err := lookup.RaterIDs(ctx, movieID)
	if err != nil {
		return nil, err
	}
	owners, err := lookup.OwnerIDs(ctx, movieID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(raters)+len(owners))
	out := make([]int64, 0, len(raters)+len(owners))
	for _, ids := range [][]int64{raters, owners} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
