package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goforj/moviematch/internal/apperr"
)

// Op names reported to observers.
const (
	OpGet        = "get"
	OpGetJSON    = "get_json"
	OpSet        = "set"
	OpSetJSON    = "set_json"
	OpDelete     = "delete"
	OpDeleteMany = "delete_many"
	OpFlush      = "flush"
)

// Cache is the facade services use on top of a Store. Every backend failure
// comes back as an apperr cache error so callers can fail open on it.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	observer   Observer
}

// NewCache creates a cache facade bound to a concrete store.
//
// Example: cache from store
//
//	ctx := context.Background()
//	c := cache.NewCache(cache.NewMemoryStore(ctx))
//	fmt.Println(c.Driver()) // memory
func NewCache(store Store) *Cache {
	return NewCacheWithTTL(store, defaultCacheTTL)
}

// NewCacheWithTTL lets callers override the default TTL applied when ttl <= 0.
func NewCacheWithTTL(store Store, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	return &Cache{
		store:      store,
		defaultTTL: defaultTTL,
	}
}

// WithObserver attaches an observer to receive operation events.
func (c *Cache) WithObserver(o Observer) *Cache {
	c.observer = o
	return c
}

// Store returns the underlying store implementation.
func (c *Cache) Store() Store {
	return c.store
}

// Driver reports the underlying store driver.
func (c *Cache) Driver() Driver {
	return c.store.Driver()
}

// Get returns raw bytes for key when present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := c.store.Get(ctx, key)
	err = c.wrap(OpGet, key, err)
	c.observe(ctx, OpGet, key, ok, err, start)
	return body, ok, err
}

// Set writes raw bytes to key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.wrap(OpSet, key, c.store.Set(ctx, key, value, c.resolveTTL(ttl)))
	c.observe(ctx, OpSet, key, false, err, start)
	return err
}

// Delete removes key. Removing an absent key succeeds.
func (c *Cache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := c.wrap(OpDelete, key, c.store.Delete(ctx, key))
	c.observe(ctx, OpDelete, key, err == nil, err, start)
	return err
}

// DeleteMany removes multiple keys.
func (c *Cache) DeleteMany(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.wrap(OpDeleteMany, fmt.Sprintf("%d keys", len(keys)), c.store.DeleteMany(ctx, keys...))
	for _, key := range keys {
		c.observe(ctx, OpDeleteMany, key, err == nil, err, start)
	}
	return err
}

// Flush clears all keys for this store scope.
func (c *Cache) Flush(ctx context.Context) error {
	start := time.Now()
	err := c.wrap(OpFlush, "", c.store.Flush(ctx))
	c.observe(ctx, OpFlush, "", err == nil, err, start)
	return err
}

// GetJSON decodes a JSON value into T when key exists. A value that does not
// decode is reported as a miss with a cache error.
func GetJSON[T any](ctx context.Context, cache *Cache, key string) (T, bool, error) {
	var zero T
	start := time.Now()
	body, ok, err := cache.Get(ctx, key)
	if err != nil || !ok {
		cache.observe(ctx, OpGetJSON, key, ok, err, start)
		return zero, ok, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		err = cache.wrap(OpGetJSON, key, fmt.Errorf("decode: %w", err))
		cache.observe(ctx, OpGetJSON, key, false, err, start)
		return zero, false, err
	}
	cache.observe(ctx, OpGetJSON, key, true, nil, start)
	return out, true, nil
}

// SetJSON encodes value as JSON and writes it to key.
func SetJSON[T any](ctx context.Context, cache *Cache, key string, value T, ttl time.Duration) error {
	start := time.Now()
	body, err := json.Marshal(value)
	if err != nil {
		err = cache.wrap(OpSetJSON, key, fmt.Errorf("encode: %w", err))
		cache.observe(ctx, OpSetJSON, key, false, err, start)
		return err
	}
	err = cache.Set(ctx, key, body, ttl)
	cache.observe(ctx, OpSetJSON, key, false, err, start)
	return err
}

func (c *Cache) resolveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.defaultTTL
}

func (c *Cache) wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) == apperr.KindCache {
		return err
	}
	return apperr.Cache("cache unavailable", fmt.Errorf("%s %q on %s: %w", op, key, c.Driver(), err))
}

func (c *Cache) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.OnCacheOp(ctx, op, key, hit, err, time.Since(start), c.Driver())
}
