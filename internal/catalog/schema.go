package catalog

import (
	"context"
	"fmt"

	"github.com/goforj/moviematch/internal/sqlutil"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		director TEXT NOT NULL,
		year INTEGER NOT NULL,
		genre TEXT NOT NULL,
		synopsis TEXT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		movie_id BIGINT NOT NULL REFERENCES movies(id),
		score INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE (user_id, movie_id)
	)`,
	`CREATE INDEX IF NOT EXISTS ratings_movie_id_idx ON ratings (movie_id)`,
	`CREATE TABLE IF NOT EXISTS user_movies (
		user_id BIGINT NOT NULL,
		movie_id BIGINT NOT NULL REFERENCES movies(id),
		PRIMARY KEY (user_id, movie_id)
	)`,
	`CREATE INDEX IF NOT EXISTS user_movies_movie_id_idx ON user_movies (movie_id)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		director VARCHAR(255) NOT NULL,
		year INT NOT NULL,
		genre VARCHAR(255) NOT NULL,
		synopsis VARCHAR(500) NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		movie_id BIGINT NOT NULL,
		score INT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE KEY ratings_user_movie (user_id, movie_id),
		KEY ratings_movie_id_idx (movie_id),
		FOREIGN KEY (movie_id) REFERENCES movies(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS user_movies (
		user_id BIGINT NOT NULL,
		movie_id BIGINT NOT NULL,
		PRIMARY KEY (user_id, movie_id),
		KEY user_movies_movie_id_idx (movie_id),
		FOREIGN KEY (movie_id) REFERENCES movies(id)
	) ENGINE=InnoDB`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		director TEXT NOT NULL,
		year INTEGER NOT NULL,
		genre TEXT NOT NULL,
		synopsis TEXT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		movie_id INTEGER NOT NULL REFERENCES movies(id),
		score INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (user_id, movie_id)
	)`,
	`CREATE INDEX IF NOT EXISTS ratings_movie_id_idx ON ratings (movie_id)`,
	`CREATE TABLE IF NOT EXISTS user_movies (
		user_id INTEGER NOT NULL,
		movie_id INTEGER NOT NULL REFERENCES movies(id),
		PRIMARY KEY (user_id, movie_id)
	)`,
	`CREATE INDEX IF NOT EXISTS user_movies_movie_id_idx ON user_movies (movie_id)`,
}

// EnsureSchema creates the catalog tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	var stmts []string
	switch s.dialect {
	case sqlutil.Postgres:
		stmts = postgresSchema
	case sqlutil.MySQL:
		stmts = mysqlSchema
	default:
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := s.pool.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
