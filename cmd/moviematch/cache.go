package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/cache"
	"github.com/goforj/moviematch/internal/config"
	"github.com/goforj/moviematch/internal/logging"
	"github.com/goforj/moviematch/internal/metrics"
)

// openCache builds the shared recommendation cache for the configured driver.
// The returned func releases backend connections.
func openCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (*cache.Cache, func(), error) {
	driver, ok := cache.ParseDriver(cfg.Driver)
	if !ok {
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
	opts := []cache.StoreOption{
		cache.WithDefaultTTL(cfg.DefaultTTL),
		cache.WithPrefix(cfg.Prefix),
	}
	closer := func() {}

	switch driver {
	case cache.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, cache.WithRedisClient(client))
		closer = func() { _ = client.Close() }
	case cache.DriverNATS:
		nc, kv, err := openNATSBucket(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, cache.WithNATSKeyValue(kv, cfg.NATS.BucketTTL))
		closer = nc.Close
	case cache.DriverDynamo:
		opts = append(opts, cache.WithDynamo(nil, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint, cfg.DynamoDB.Table))
	case cache.DriverSQL:
		opts = append(opts, cache.WithSQL(cfg.SQL.Driver, cfg.SQL.DSN, cfg.SQL.Table))
	case cache.DriverMemory:
		opts = append(opts, cache.WithMemoryCleanupInterval(cfg.Memory.CleanupInterval))
	}

	store := cache.NewStoreWith(ctx, driver, opts...)
	if err := cache.Ready(store); err != nil {
		closer()
		return nil, nil, err
	}
	c := cache.NewCacheWithTTL(store, cfg.DefaultTTL).
		WithObserver(cache.Observers(logging.CacheObserver(logger), metrics.CacheObserver()))
	logger.Info().Str("driver", string(driver)).Str("prefix", cfg.Prefix).Msg("recommendation cache ready")
	return c, closer, nil
}

func openNATSBucket(cfg config.CacheConfig) (*nats.Conn, nats.KeyValue, error) {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("moviematch"))
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect %s: %w", cfg.NATS.URL, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.KeyValue(cfg.NATS.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kvCfg := &nats.KeyValueConfig{Bucket: cfg.NATS.Bucket}
		if cfg.NATS.BucketTTL {
			kvCfg.TTL = cfg.DefaultTTL
		}
		kv, err = js.CreateKeyValue(kvCfg)
	}
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("nats bucket %s: %w", cfg.NATS.Bucket, err)
	}
	return nc, kv, nil
}
