// Package cachefake provides an in-memory cache that records every call and
// can be told to fail, so tests can tell an attempted invalidation apart
// from a successful one.
package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/moviematch/cache"
)

// Op identifies a cache operation for assertions.
type Op string

const (
	OpGet        Op = "get"
	OpSet        Op = "set"
	OpDelete     Op = "delete"
	OpDeleteMany Op = "delete_many"
	OpFlush      Op = "flush"
)

type opKey struct {
	op  Op
	key string
}

// Fake exposes a deterministic in-memory store plus assertion helpers for tests.
type Fake struct {
	cache *cache.Cache
	store *countingStore

	mu        sync.Mutex
	attempts  map[Op]map[string]int
	successes map[Op]map[string]int
	failOp    map[Op]error
	failKey   map[opKey][]error
}

// New creates a Fake using an in-memory store.
func New() *Fake {
	f := &Fake{}
	f.store = &countingStore{inner: cache.NewMemoryStore(context.Background()), fake: f}
	f.cache = cache.NewCache(f.store)
	f.Reset()
	return f
}

// Cache returns the cache facade to inject into code under test.
func (f *Fake) Cache() *cache.Cache { return f.cache }

// Store returns the recording store, e.g. to wrap in another facade.
func (f *Fake) Store() cache.Store { return f.store }

// FailOp makes every call of op return err until Reset.
func (f *Fake) FailOp(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOp[op] = err
}

// FailKey queues errors for op on key. Each call consumes one error; a nil
// entry lets that call through.
func (f *Fake) FailKey(op Op, key string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := opKey{op, key}
	f.failKey[k] = append(f.failKey[k], errs...)
}

// Reset clears recorded counts and injected failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = make(map[Op]map[string]int)
	f.successes = make(map[Op]map[string]int)
	f.failOp = make(map[Op]error)
	f.failKey = make(map[opKey][]error)
}

// Seed writes a value without recording the call.
func (f *Fake) Seed(t *testing.T, key string, value []byte) {
	t.Helper()
	if err := f.store.inner.Set(context.Background(), key, value, time.Minute); err != nil {
		t.Fatalf("seed %q: %v", key, err)
	}
}

// Has reports whether key currently holds a value, without recording the call.
func (f *Fake) Has(key string) bool {
	_, ok, _ := f.store.inner.Get(context.Background(), key)
	return ok
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertSucceeded verifies op on key completed without error the expected number of times.
func (f *Fake) AssertSucceeded(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Succeeded(op, key); got != times {
		t.Fatalf("expected %s %q to succeed %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns attempted calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[op][key]
}

// Succeeded returns calls for op+key that returned no error.
func (f *Fake) Succeeded(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.successes[op][key]
}

// Total returns total attempted calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.attempts[op] {
		sum += v
	}
	return sum
}

// begin records an attempt and returns the injected failure, if any.
func (f *Fake) begin(op Op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bump(f.attempts, op, key)
	k := opKey{op, key}
	if queued := f.failKey[k]; len(queued) > 0 {
		f.failKey[k] = queued[1:]
		if queued[0] != nil {
			return queued[0]
		}
	}
	return f.failOp[op]
}

func (f *Fake) finish(op Op, key string, err error) {
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	bump(f.successes, op, key)
}

func bump(m map[Op]map[string]int, op Op, key string) {
	if m[op] == nil {
		m[op] = make(map[string]int)
	}
	m[op][key]++
}

// countingStore wraps a Store to record calls.
type countingStore struct {
	inner cache.Store
	fake  *Fake
}

func (s *countingStore) Driver() cache.Driver { return s.inner.Driver() }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.fake.begin(OpGet, key); err != nil {
		return nil, false, err
	}
	body, ok, err := s.inner.Get(ctx, key)
	s.fake.finish(OpGet, key, err)
	return body, ok, err
}

func (s *countingStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.fake.begin(OpSet, key); err != nil {
		return err
	}
	err := s.inner.Set(ctx, key, val, ttl)
	s.fake.finish(OpSet, key, err)
	return err
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	if err := s.fake.begin(OpDelete, key); err != nil {
		return err
	}
	err := s.inner.Delete(ctx, key)
	s.fake.finish(OpDelete, key, err)
	return err
}

func (s *countingStore) DeleteMany(ctx context.Context, keys ...string) error {
	var failed error
	for _, k := range keys {
		if err := s.fake.begin(OpDeleteMany, k); err != nil && failed == nil {
			failed = err
		}
	}
	if failed != nil {
		return failed
	}
	err := s.inner.DeleteMany(ctx, keys...)
	for _, k := range keys {
		s.fake.finish(OpDeleteMany, k, err)
	}
	return err
}

func (s *countingStore) Flush(ctx context.Context) error {
	if err := s.fake.begin(OpFlush, ""); err != nil {
		return err
	}
	err := s.inner.Flush(ctx)
	s.fake.finish(OpFlush, "", err)
	return err
}
