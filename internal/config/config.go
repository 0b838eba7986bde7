// Package config loads moviematch settings with koanf from, in increasing
// precedence: built-in defaults, an optional YAML file, and MOVIEMATCH_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goforj/moviematch/cache"
)

// Server roles. Each role mounts the routes of one service; RoleAll mounts everything.
const (
	RoleAll            = "all"
	RoleRating         = "rating"
	RoleMovie          = "movie"
	RoleRecommendation = "recommendation"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Cache        CacheConfig        `koanf:"cache"`
	Recommend    RecommendConfig    `koanf:"recommend"`
	Invalidation InvalidationConfig `koanf:"invalidation"`
	Identity     IdentityConfig     `koanf:"identity"`
	Auth         AuthConfig         `koanf:"auth"`
	Logging      LoggingConfig      `koanf:"logging"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	Role            string        `koanf:"role"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	DSN         string `koanf:"dsn"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

type CacheConfig struct {
	Driver     string        `koanf:"driver"`
	Prefix     string        `koanf:"prefix"`
	DefaultTTL time.Duration `koanf:"default_ttl"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	NATS struct {
		URL       string `koanf:"url"`
		Bucket    string `koanf:"bucket"`
		BucketTTL bool   `koanf:"bucket_ttl"`
	} `koanf:"nats"`

	DynamoDB struct {
		Region   string `koanf:"region"`
		Endpoint string `koanf:"endpoint"`
		Table    string `koanf:"table"`
	} `koanf:"dynamodb"`

	SQL struct {
		Driver string `koanf:"driver"`
		DSN    string `koanf:"dsn"`
		Table  string `koanf:"table"`
	} `koanf:"sql"`

	Memory struct {
		CleanupInterval time.Duration `koanf:"cleanup_interval"`
	} `koanf:"memory"`
}

type RecommendConfig struct {
	TTL                 time.Duration `koanf:"ttl"`
	CandidateLimit      int           `koanf:"candidate_limit"`
	HighRatingThreshold int           `koanf:"high_rating_threshold"`
	CaseInsensitive     bool          `koanf:"case_insensitive"`
}

type InvalidationConfig struct {
	Attempts int `koanf:"attempts"`
}

type IdentityConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() Config {
	cfg := Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Role:            RoleAll,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "file:moviematch.db?_pragma=busy_timeout(5000)",
			AutoMigrate: true,
		},
		Cache: CacheConfig{
			Driver:     string(cache.DriverMemory),
			DefaultTTL: 600 * time.Second,
		},
		Recommend: RecommendConfig{
			TTL:                 600 * time.Second,
			CandidateLimit:      5,
			HighRatingThreshold: 4,
		},
		Invalidation: InvalidationConfig{Attempts: 2},
		Identity: IdentityConfig{
			Enabled: true,
			BaseURL: "http://localhost:3000",
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	cfg.Cache.Redis.Addr = "localhost:6379"
	cfg.Cache.NATS.URL = "nats://localhost:4222"
	cfg.Cache.NATS.Bucket = "recommendations"
	cfg.Cache.DynamoDB.Region = "us-east-1"
	cfg.Cache.DynamoDB.Table = "recommendation_cache"
	cfg.Cache.SQL.Table = "cache_entries"
	cfg.Cache.Memory.CleanupInterval = 10 * time.Minute
	return cfg
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Server.Role {
	case RoleAll, RoleRating, RoleMovie, RoleRecommendation:
	default:
		errs = append(errs, fmt.Errorf("server.role: unknown role %q", c.Server.Role))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr: required"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	if _, ok := cache.ParseDriver(c.Cache.Driver); !ok {
		errs = append(errs, fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, errors.New("cache.default_ttl: must be positive"))
	}
	if c.Recommend.TTL <= 0 {
		errs = append(errs, errors.New("recommend.ttl: must be positive"))
	}
	if c.Recommend.CandidateLimit <= 0 {
		errs = append(errs, errors.New("recommend.candidate_limit: must be positive"))
	}
	if c.Recommend.HighRatingThreshold < 1 || c.Recommend.HighRatingThreshold > 5 {
		errs = append(errs, errors.New("recommend.high_rating_threshold: must be between 1 and 5"))
	}
	if c.Invalidation.Attempts < 1 {
		errs = append(errs, errors.New("invalidation.attempts: must be at least 1"))
	}
	if c.Identity.Enabled && c.Identity.BaseURL == "" {
		errs = append(errs, errors.New("identity.base_url: required when identity is enabled"))
	}
	if c.Identity.Timeout <= 0 {
		errs = append(errs, errors.New("identity.timeout: must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret: required"))
	}
	return errors.Join(errs...)
}
