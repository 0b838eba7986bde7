package cache

import (
	"context"
	"time"
)

// Driver identifies the backend holding the shared recommendation cache.
type Driver string

const (
	DriverNull   Driver = "null"
	DriverMemory Driver = "memory"
	DriverSQL    Driver = "sql"
	DriverRedis  Driver = "redis"
	DriverNATS   Driver = "nats"
	DriverDynamo Driver = "dynamodb"
)

// ParseDriver maps a configuration string onto a Driver.
func ParseDriver(name string) (Driver, bool) {
	switch d := Driver(name); d {
	case DriverNull, DriverMemory, DriverSQL, DriverRedis, DriverNATS, DriverDynamo:
		return d, true
	}
	return "", false
}

// Store is the contract every cache backend satisfies.
//
// Get reports a miss as (nil, false, nil). Deleting a key that does not
// exist is not an error, so invalidation is idempotent.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// scopedKey applies a namespace prefix. An empty prefix leaves keys untouched
// so other processes can address entries by their literal name.
func scopedKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
