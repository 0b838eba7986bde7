package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/cache"
)

// CacheObserver logs cache operations: failures at warn, the rest at debug.
func CacheObserver(base zerolog.Logger) cache.Observer {
	logger := Component(base, "cache")
	return cache.ObserverFunc(func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver cache.Driver) {
		l := Ctx(ctx, logger)
		var ev *zerolog.Event
		if err != nil {
			ev = l.Warn().Err(err)
		} else {
			ev = l.Debug()
		}
		ev.Str("op", op).
			Str("key", key).
			Bool("hit", hit).
			Str("driver", string(driver)).
			Dur("duration", dur).
			Msg("cache op")
	})
}
