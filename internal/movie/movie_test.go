package movie

import (
	"context"
	"errors"
	"fmt"
	"reflect"
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
	store *catalog.Store
	fake  *cachefake.Fake
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
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
	return &fixture{
		store: store,
		fake:  fake,
		svc:   NewService(store, invalidation.New(fake.Cache(), zerolog.Nop(), 2), zerolog.Nop()),
	}
}

func validInput(title string) Input {
	return Input{Title: title, Director: "Ridley Scott", Year: 1979, Genre: "Horror/Sci-Fi"}
}

func (f *fixture) create(t *testing.T, owner int64, title string) catalog.Movie {
	t.Helper()
	m, err := f.svc.Create(context.Background(), owner, validInput(title))
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return m
}

func (f *fixture) seedAll(t *testing.T, users ...int64) {
	t.Helper()
	for _, u := range users {
		f.fake.Seed(t, invalidation.Key(u), []byte("[]"))
	}
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", 501)
	cases := map[string]Input{
		"empty title":    {Director: "Ab", Year: 2000, Genre: "Drama"},
		"short director": {Title: "T", Director: "A", Year: 2000, Genre: "Drama"},
		"old year":       {Title: "T", Director: "Ab", Year: 1899, Genre: "Drama"},
		"future year":    {Title: "T", Director: "Ab", Year: time.Now().Year() + 1, Genre: "Drama"},
		"short genre":    {Title: "T", Director: "Ab", Year: 2000, Genre: "War"},
		"long synopsis":  {Title: "T", Director: "Ab", Year: 2000, Genre: "Drama", Synopsis: &long},
	}
	for name, in := range cases {
		if _, err := f.svc.Create(context.Background(), 1, in); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestCreateAndGetWithUserRating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.create(t, 1, "Alien")

	got, err := f.svc.Get(ctx, m.ID, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Alien" || got.UserRating != nil {
		t.Fatalf("unexpected movie: %+v", got)
	}
	if _, err := f.store.CreateRating(ctx, 2, m.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	got, _ = f.svc.Get(ctx, m.ID, 2)
	if got.UserRating == nil || *got.UserRating != 5 {
		t.Fatalf("expected user rating 5, got %v", got.UserRating)
	}
	if _, err := f.svc.Get(ctx, m.ID+50, 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPagesOwnMovies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.create(t, 1, fmt.Sprintf("Mine %d", i))
	}
	f.create(t, 2, "Theirs")

	page, err := f.svc.List(ctx, 1, ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalMovies != 7 || page.TotalPages != 2 || page.CurrentPage != 1 || len(page.Movies) != 5 {
		t.Fatalf("unexpected first page: total=%d pages=%d current=%d len=%d", page.TotalMovies, page.TotalPages, page.CurrentPage, len(page.Movies))
	}
	page, _ = f.svc.List(ctx, 1, ListQuery{Page: 2})
	if len(page.Movies) != 2 {
		t.Fatalf("expected 2 movies on page 2, got %d", len(page.Movies))
	}
	page, _ = f.svc.List(ctx, 3, ListQuery{})
	if page.TotalMovies != 0 || page.Movies == nil {
		t.Fatalf("expected empty non-nil page, got %+v", page)
	}
	if _, err := f.svc.List(ctx, 1, ListQuery{Limit: 1000}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for huge limit, got %v", err)
	}
}

func TestUpdateRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 1, "Alien")
	_, err := f.svc.Update(context.Background(), m.ID, 2, validInput("Aliens"))
	if !errors.Is(err, apperr.ErrNotFound) || apperr.PublicMessage(err) != "movie not found or unauthorized" {
		t.Fatalf("expected ownership rejection, got %v", err)
	}
	if _, err := f.svc.Delete(context.Background(), m.ID, 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ownership rejection on delete, got %v", err)
	}
}

func TestUpdateInvalidatesRatersAndOwners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.create(t, 1, "Alien")
	if _, err := f.store.CreateRating(ctx, 4, m.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	f.seedAll(t, 1, 4, 9)

	in := validInput("Alien: Director's Cut")
	in.Genre = "Horror"
	res, err := f.svc.Update(ctx, m.ID, 1, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Movie.Title != in.Title || res.Movie.Genre != "Horror" {
		t.Fatalf("unexpected movie: %+v", res.Movie)
	}
	if got := res.Invalidation.UserIDs(); !reflect.DeepEqual(got, []int64{1, 4}) {
		t.Fatalf("invalidated users = %v", got)
	}
	if f.fake.Has("recommendations:1") || f.fake.Has("recommendations:4") || !f.fake.Has("recommendations:9") {
		t.Fatalf("expected only users 1 and 4 invalidated")
	}
}

func TestDeleteFansOutToRatersAndOwners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.create(t, 3, "Doomed")
	other := f.create(t, 3, "Other")
	for _, u := range []int64{1, 2} {
		if _, err := f.store.CreateRating(ctx, u, m.ID, 4); err != nil {
			t.Fatalf("rate: %v", err)
		}
	}
	if _, err := f.store.CreateRating(ctx, 8, other.ID, 4); err != nil {
		t.Fatalf("rate: %v", err)
	}
	f.seedAll(t, 1, 2, 3, 8)

	res, err := f.svc.Delete(ctx, m.ID, 3)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.Movie.ID != m.ID {
		t.Fatalf("expected deleted movie, got %+v", res.Movie)
	}
	if !reflect.DeepEqual(res.AffectedUsers, []int64{1, 2, 3}) {
		t.Fatalf("affected users = %v", res.AffectedUsers)
	}
	for _, u := range []int64{1, 2, 3} {
		if f.fake.Has(invalidation.Key(u)) {
			t.Fatalf("user %d cache entry should be deleted", u)
		}
		f.fake.AssertSucceeded(t, cachefake.OpDelete, invalidation.Key(u), 1)
	}
	if !f.fake.Has("recommendations:8") {
		t.Fatalf("unrelated user must keep the cache entry")
	}
	f.fake.AssertNotCalled(t, cachefake.OpDelete, "recommendations:8")
	if _, err := f.svc.Get(ctx, m.ID, 3); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("movie should be gone, got %v", err)
	}
}

func TestDeleteSingleRater(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.create(t, 7, "201")
	if _, err := f.store.CreateRating(ctx, 7, m.ID, 3); err != nil {
		t.Fatalf("rate: %v", err)
	}
	res, err := f.svc.DeleteMovie(ctx, m.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !reflect.DeepEqual(res.AffectedUsers, []int64{7}) {
		t.Fatalf("affected users = %v", res.AffectedUsers)
	}
	f.fake.AssertTotal(t, cachefake.OpDelete, 1)
}

func TestDeleteCommitsDespiteInvalidationFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.create(t, 3, "Doomed")
	if _, err := f.store.CreateRating(ctx, 5, m.ID, 2); err != nil {
		t.Fatalf("rate: %v", err)
	}
	f.fake.FailKey(cachefake.OpDelete, "recommendations:5", errors.New("a"), errors.New("b"))

	res, err := f.svc.DeleteMovie(ctx, m.ID)
	if err != nil {
		t.Fatalf("delete must not fail on invalidation errors: %v", err)
	}
	failed := res.Invalidation.Failed()
	if len(failed) != 1 || failed[0].UserID != 5 || failed[0].Attempts != 2 {
		t.Fatalf("expected user 5 to fail after 2 attempts, got %+v", failed)
	}
	if _, err := f.store.GetMovie(ctx, m.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("delete should have committed, got %v", err)
	}
}

func TestDeleteMissingMovieIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteMovie(context.Background(), 404)
	if !errors.Is(err, apperr.ErrNotFound) || apperr.PublicMessage(err) != "movie not found" {
		t.Fatalf("expected movie not found, got %v", err)
	}
	f.fake.AssertTotal(t, cachefake.OpDelete, 0)
}

type brokenTxStore struct {
	*catalog.Store
	err error
}

func (s brokenTxStore) InTx(context.Context, func(*catalog.Tx) error) error { return s.err }

func TestDeleteStorageFailureSurfacesAsNotFound(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 3, "Doomed")
	cause := errors.New("connection reset")
	svc := NewService(brokenTxStore{Store: f.store, err: cause}, invalidation.New(f.fake.Cache(), zerolog.Nop(), 1), zerolog.Nop())

	_, err := svc.Delete(context.Background(), m.ID, 3)
	if !errors.Is(err, apperr.ErrNotFound) || apperr.PublicMessage(err) != "movie not found" {
		t.Fatalf("expected generic not found, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain, got %v", err)
	}
	f.fake.AssertTotal(t, cachefake.OpDelete, 0)
}

type brokenOwnerStore struct {
	*catalog.Store
	err error
}

func (s brokenOwnerStore) MovieBelongsToUser(context.Context, int64, int64) (bool, error) {
	return false, s.err
}

func TestDeleteOwnershipLookupFailureSurfacesAsNotFound(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 3, "Guarded")
	cause := errors.New("connection reset")
	svc := NewService(brokenOwnerStore{Store: f.store, err: cause}, invalidation.New(f.fake.Cache(), zerolog.Nop(), 1), zerolog.Nop())

	_, err := svc.Delete(context.Background(), m.ID, 3)
	if !errors.Is(err, apperr.ErrNotFound) || apperr.PublicMessage(err) != "movie not found" {
		t.Fatalf("expected generic not found, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain, got %v", err)
	}
	if _, err := f.store.GetMovie(context.Background(), m.ID); err != nil {
		t.Fatalf("movie should survive a failed ownership check: %v", err)
	}
	f.fake.AssertTotal(t, cachefake.OpDelete, 0)

	_, err = svc.Update(context.Background(), m.ID, 3, validInput("Guarded"))
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("update keeps the persistence error, got %v", err)
	}
}
