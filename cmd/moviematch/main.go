// Command moviematch serves the movie, rating and recommendation APIs.
//
// The server role decides which of them a process exposes, so the three can
// be deployed separately while sharing one relational store and one cache:
//
//	MOVIEMATCH_SERVER__ROLE=recommendation MOVIEMATCH_CACHE__DRIVER=redis \
//	MOVIEMATCH_AUTH__JWT_SECRET=... moviematch
//
// SIGINT and SIGTERM drain in-flight requests before exiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/goforj/moviematch/internal/catalog"
	"github.com/goforj/moviematch/internal/config"
	"github.com/goforj/moviematch/internal/httpapi"
	"github.com/goforj/moviematch/internal/identity"
	"github.com/goforj/moviematch/internal/invalidation"
	"github.com/goforj/moviematch/internal/logging"
	"github.com/goforj/moviematch/internal/movie"
	"github.com/goforj/moviematch/internal/rating"
	"github.com/goforj/moviematch/internal/recommend"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "moviematch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := catalog.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	recCache, closeCache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer closeCache()

	inv := invalidation.New(recCache, logger, cfg.Invalidation.Attempts)
	deps := httpapi.Deps{
		Role:      cfg.Server.Role,
		JWTSecret: cfg.Auth.JWTSecret,
		Ratings:   rating.NewService(store, inv, logger),
		Movies:    movie.NewService(store, inv, logger),
		Recommend: recommend.NewEngine(store, recCache, inv, logger, recommend.Config{
			TTL:                 cfg.Recommend.TTL,
			CandidateLimit:      cfg.Recommend.CandidateLimit,
			HighRatingThreshold: cfg.Recommend.HighRatingThreshold,
			CaseInsensitive:     cfg.Recommend.CaseInsensitive,
		}),
		Ready:  store.Ping,
		Logger: logger,
	}
	if cfg.Identity.Enabled {
		deps.Identity = identity.New(identity.Config{
			BaseURL: cfg.Identity.BaseURL,
			Timeout: cfg.Identity.Timeout,
		}, logger)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return serve(ctx, srv, cfg.Server, logger)
}

func serve(ctx context.Context, srv *http.Server, cfg config.ServerConfig, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("role", cfg.Role).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
