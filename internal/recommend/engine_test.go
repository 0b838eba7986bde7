package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/cachefake"
	"github.com/goforj/moviematch/internal/apperr"
	"github.com/goforj/moviematch/internal/catalog"
	"github.com/goforj/moviematch/internal/invalidation"
)

type fixture struct {
	store  *catalog.Store
	fake   *cachefake.Fake
	engine *Engine
	movies map[string]int64
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := catalog.Open(ctx, "sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	fake := cachefake.New()
	inv := invalidation.New(fake.Cache(), zerolog.Nop(), 1)
	return &fixture{
		store:  store,
		fake:   fake,
		engine: NewEngine(store, fake.Cache(), inv, zerolog.Nop(), cfg),
		movies: map[string]int64{},
	}
}

func (f *fixture) movie(t *testing.T, title, genre string) int64 {
	t.Helper()
	m, err := f.store.CreateMovie(context.Background(), 1000, catalog.MovieInput{Title: title, Director: "Dir", Year: 2000, Genre: genre})
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	f.movies[title] = m.ID
	return m.ID
}

func (f *fixture) rate(t *testing.T, userID, movieID int64, score int) {
	t.Helper()
	if _, err := f.store.CreateRating(context.Background(), userID, movieID, score); err != nil {
		t.Fatalf("rate: %v", err)
	}
}

func ids(r Result) []int64 {
	out := make([]int64, len(r.Movies))
	for i, m := range r.Movies {
		out[i] = m.ID
	}
	return out
}

func TestRecommendWithoutRatingsIsNotCached(t *testing.T) {
	f := newFixture(t, Config{})
	got, err := f.engine.Recommend(context.Background(), 7)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if got.Message != MessageNotEnoughData {
		t.Fatalf("expected not-enough-data message, got %+v", got)
	}
	f.fake.AssertTotal(t, cachefake.OpSet, 0)
}

func TestRecommendOnlyLowRatings(t *testing.T) {
	f := newFixture(t, Config{})
	f.rate(t, 7, f.movie(t, "Meh", "Drama"), 2)
	got, _ := f.engine.Recommend(context.Background(), 7)
	if got.Message != MessageNotEnoughData {
		t.Fatalf("expected not-enough-data message, got %+v", got)
	}
}

func TestRecommendBlankGenres(t *testing.T) {
	f := newFixture(t, Config{})
	f.rate(t, 7, f.movie(t, "Blank", " / "), 5)
	got, err := f.engine.Recommend(context.Background(), 7)
	if err != nil || got.Message != MessageNoGenres {
		t.Fatalf("expected no-genres message, got %+v err=%v", got, err)
	}
	f.fake.AssertTotal(t, cachefake.OpSet, 0)
}

func TestRecommendComputesAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.rate(t, 7, f.movie(t, "101", "Action/Adventure"), 5)
	f.rate(t, 7, f.movie(t, "102", "Action"), 4)
	candidate := f.movie(t, "201", "Action")
	f.movie(t, "301", "Romance")

	got, err := f.engine.Recommend(ctx, 7)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if r := ids(got); len(r) != 1 || r[0] != candidate {
		t.Fatalf("expected [201], got %v", r)
	}
	f.fake.AssertSucceeded(t, cachefake.OpSet, "recommendations:7", 1)

	body, ok, err := f.fake.Cache().Get(ctx, "recommendations:7")
	if err != nil || !ok {
		t.Fatalf("expected cached entry, ok=%v err=%v", ok, err)
	}
	var cached Result
	if err := json.Unmarshal(body, &cached); err != nil {
		t.Fatalf("cached entry does not decode: %v", err)
	}
	if r := ids(cached); len(r) != 1 || r[0] != candidate {
		t.Fatalf("cached ids = %v", r)
	}
}

func TestRecommendCachedTTL(t *testing.T) {
	f := newFixture(t, Config{TTL: 30 * time.Millisecond})
	f.rate(t, 7, f.movie(t, "Liked", "Action"), 5)
	f.movie(t, "New", "Action")

	if _, err := f.engine.Recommend(context.Background(), 7); err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if !f.fake.Has("recommendations:7") {
		t.Fatalf("expected cache entry")
	}
	time.Sleep(60 * time.Millisecond)
	if f.fake.Has("recommendations:7") {
		t.Fatalf("expected entry to expire with its ttl")
	}
}

func TestRecommendCacheHitSkipsStore(t *testing.T) {
	f := newFixture(t, Config{})
	f.fake.Seed(t, "recommendations:7", []byte(`[{"id":55,"title":"Cached","director":"D","year":2001,"genre":"Drama"}]`))

	got, err := f.engine.Recommend(context.Background(), 7)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if r := ids(got); len(r) != 1 || r[0] != 55 {
		t.Fatalf("expected cached movie, got %v", r)
	}
	f.fake.AssertTotal(t, cachefake.OpSet, 0)
}

func TestRecommendTieBreakUsesAllTopGenres(t *testing.T) {
	f := newFixture(t, Config{})
	f.rate(t, 7, f.movie(t, "a1", "Action"), 5)
	f.rate(t, 7, f.movie(t, "a2", "Action/Comedy"), 4)
	f.rate(t, 7, f.movie(t, "d1", "Drama"), 5)
	f.rate(t, 7, f.movie(t, "d2", "Drama"), 4)
	action := f.movie(t, "new action", "Action")
	drama := f.movie(t, "new drama", "Drama")
	f.movie(t, "new comedy", "Comedy")

	got, err := f.engine.Recommend(context.Background(), 7)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if r := ids(got); len(r) != 2 || r[0] != action || r[1] != drama {
		t.Fatalf("expected action and drama picks, got %v", r)
	}
}

func TestRecommendExcludesLowRatedMovies(t *testing.T) {
	f := newFixture(t, Config{})
	f.rate(t, 7, f.movie(t, "loved", "Action"), 5)
	f.rate(t, 7, f.movie(t, "disliked", "Action"), 2)

	got, err := f.engine.Recommend(context.Background(), 7)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if got.Message != MessageNoCandidates {
		t.Fatalf("expected no-candidates message, got %+v", got)
	}
	f.fake.AssertTotal(t, cachefake.OpSet, 0)
}

func TestRecommendLimitsCandidates(t *testing.T) {
	f := newFixture(t, Config{CandidateLimit: 2})
	f.rate(t, 7, f.movie(t, "seed", "Horror"), 5)
	for i := 0; i < 4; i++ {
		f.movie(t, fmt.Sprintf("h%d", i), "Horror")
	}
	got, _ := f.engine.Recommend(context.Background(), 7)
	if len(got.Movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(got.Movies))
	}
}

func TestRecommendFailsOpenOnCacheErrors(t *testing.T) {
	f := newFixture(t, Config{})
	f.fake.FailOp(cachefake.OpGet, errors.New("redis down"))
	f.fake.FailOp(cachefake.OpSet, errors.New("redis down"))
	f.rate(t, 7, f.movie(t, "liked", "Action"), 5)
	want := f.movie(t, "pick", "Action")

	got, err := f.engine.Recommend(context.Background(), 7)
	if err != nil {
		t.Fatalf("cache errors must not fail the request: %v", err)
	}
	if r := ids(got); len(r) != 1 || r[0] != want {
		t.Fatalf("expected computed result, got %v", r)
	}
	f.fake.AssertCalled(t, cachefake.OpSet, "recommendations:7", 1)
}

func TestRecommendUndecodableEntryIsAMiss(t *testing.T) {
	f := newFixture(t, Config{})
	f.fake.Seed(t, "recommendations:7", []byte("{not json"))
	got, err := f.engine.Recommend(context.Background(), 7)
	if err != nil || got.Message != MessageNotEnoughData {
		t.Fatalf("expected recompute, got %+v err=%v", got, err)
	}
}

func TestRecommendMalformedEntriesAreRecomputed(t *testing.T) {
	payloads := map[string]string{
		"null":          `null`,
		"empty_object":  `{}`,
		"unknown_field": `{"foo":1}`,
		"empty_list":    `[]`,
		"empty_message": `{"message":""}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.rate(t, 7, f.movie(t, "Liked", "Action"), 5)
			want := f.movie(t, "Unseen", "Action")
			f.fake.Seed(t, "recommendations:7", []byte(payload))

			got, err := f.engine.Recommend(context.Background(), 7)
			if err != nil {
				t.Fatalf("recommend: %v", err)
			}
			if got.IsMessage() || len(got.Movies) != 1 || got.Movies[0].ID != want {
				t.Fatalf("expected recomputed [%d], got %+v", want, got)
			}
			f.fake.AssertCalled(t, cachefake.OpSet, "recommendations:7", 1)
		})
	}
}

type failingStore struct{ err error }

func (s failingStore) RatingsWithGenres(context.Context, int64) ([]catalog.RatedMovie, error) {
	return nil, s.err
}

func (s failingStore) FindCandidates(context.Context, catalog.CandidateQuery) ([]catalog.Movie, error) {
	return nil, s.err
}

func TestRecommendStoreFailureIsPersistenceError(t *testing.T) {
	fake := cachefake.New()
	e := NewEngine(failingStore{err: errors.New("db gone")}, fake.Cache(), invalidation.New(fake.Cache(), zerolog.Nop(), 1), zerolog.Nop(), Config{})
	_, err := e.Recommend(context.Background(), 7)
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

type zeroIDStore struct{}

func (zeroIDStore) RatingsWithGenres(context.Context, int64) ([]catalog.RatedMovie, error) {
	return []catalog.RatedMovie{{MovieID: 1, Score: 5, Genre: "Drama"}}, nil
}

func (zeroIDStore) FindCandidates(context.Context, catalog.CandidateQuery) ([]catalog.Movie, error) {
	return []catalog.Movie{{Title: "broken"}}, nil
}

func TestRecommendDropsCandidatesWithoutID(t *testing.T) {
	fake := cachefake.New()
	e := NewEngine(zeroIDStore{}, fake.Cache(), invalidation.New(fake.Cache(), zerolog.Nop(), 1), zerolog.Nop(), Config{})
	got, err := e.Recommend(context.Background(), 7)
	if err != nil || got.Message != MessageNoCandidates {
		t.Fatalf("expected no-candidates message, got %+v err=%v", got, err)
	}
	fake.AssertTotal(t, cachefake.OpSet, 0)
}

func TestClearCache(t *testing.T) {
	f := newFixture(t, Config{})
	f.fake.Seed(t, "recommendations:7", []byte("[]"))
	if err := f.engine.ClearCache(context.Background(), 7); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if f.fake.Has("recommendations:7") {
		t.Fatalf("entry should be gone")
	}
	f.fake.FailOp(cachefake.OpDelete, errors.New("down"))
	if err := f.engine.ClearCache(context.Background(), 7); !errors.Is(err, apperr.ErrCache) {
		t.Fatalf("expected cache error, got %v", err)
	}
}
