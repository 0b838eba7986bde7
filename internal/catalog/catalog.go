// Package catalog is the relational store behind moviematch: movies, their
// ratings and the user_movies ownership relation. It runs on database/sql
// with postgres (pgx), mysql or sqlite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goforj/moviematch/internal/sqlutil"
)

var (
	// ErrNotFound is returned when a looked up row does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicate wraps unique or primary key violations.
	ErrDuplicate = errors.New("catalog: duplicate")
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; it runs against the pool or a transaction.
type queries struct {
	db      dbtx
	dialect sqlutil.Dialect
	now     func() time.Time
}

// Store is the catalog backed by a connection pool.
type Store struct {
	queries
	pool *sql.DB
}

// Tx exposes the same reads and writes as Store inside one transaction.
type Tx struct {
	queries
}

// Open connects to the database identified by driverName (postgres, pgx,
// mysql, sqlite) and dsn.
func Open(ctx context.Context, driverName, dsn string) (*Store, error) {
	dialect, err := sqlutil.ParseDialect(driverName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == sqlutil.SQLite {
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return New(db, dialect), nil
}

// New wraps an existing pool.
func New(db *sql.DB, dialect sqlutil.Dialect) *Store {
	return &Store{
		queries: queries{db: db, dialect: dialect, now: time.Now},
		pool:    db,
	}
}

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() sqlutil.Dialect { return s.dialect }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.pool.PingContext(ctx) }

// Close releases the pool.
func (s *Store) Close() error { return s.pool.Close() }

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()
	if err = fn(&Tx{queries: queries{db: sqlTx, dialect: s.dialect, now: s.now}}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateMovie inserts the movie and links it to its owner atomically.
func (s *Store) CreateMovie(ctx context.Context, ownerID int64, in MovieInput) (Movie, error) {
	var out Movie
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.CreateMovie(ctx, ownerID, in)
		return err
	})
	return out, err
}

// DeleteMovieCascade removes the movie with its ratings and ownership rows atomically.
func (s *Store) DeleteMovieCascade(ctx context.Context, movieID int64) (Movie, error) {
	var out Movie
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.DeleteMovieCascade(ctx, movieID)
		return err
	})
	return out, err
}

// ph appends arguments and hands back their placeholders so statements can
// be assembled without tracking postgres positions by hand.
type ph struct {
	dialect sqlutil.Dialect
	args    []any
}

func (p *ph) add(v any) string {
	p.args = append(p.args, v)
	return p.dialect.Placeholder(len(p.args))
}

func (p *ph) list(vs []int64) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = p.add(v)
	}
	return strings.Join(out, ", ")
}

func (q queries) duplicate(err error) error {
	if err != nil && q.dialect.IsDuplicate(err) {
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}

func (q queries) insertID(ctx context.Context, stmt string, args ...any) (int64, error) {
	if q.dialect == sqlutil.Postgres {
		var id int64
		err := q.db.QueryRowContext(ctx, stmt+" RETURNING id", args...).Scan(&id)
		return id, q.duplicate(err)
	}
	res, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, q.duplicate(err)
	}
	return res.LastInsertId()
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
