package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goforj/moviematch/internal/sqlutil"
)

type sqlStore struct {
	db         *sql.DB
	table      string
	dialect    sqlutil.Dialect
	prefix     string
	defaultTTL time.Duration
	getStmt    *sql.Stmt
	upsertStmt *sql.Stmt
	deleteStmt *sql.Stmt
	flushStmt  *sql.Stmt
}

func newSQLStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errors.New("sql driver requires driver name and dsn")
	}
	dialect, err := sqlutil.ParseDialect(cfg.SQLDriverName)
	if err != nil {
		return nil, err
	}
	if err := sqlutil.ValidateTableName(cfg.SQLTable); err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return openSQLStore(ctx, db, dialect, cfg)
}

func openSQLStore(ctx context.Context, db *sql.DB, dialect sqlutil.Dialect, cfg StoreConfig) (*sqlStore, error) {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	s := &sqlStore{
		db:         db,
		table:      cfg.SQLTable,
		dialect:    dialect,
		prefix:     cfg.Prefix,
		defaultTTL: ttl,
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if err := s.prepareStatements(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) Driver() Driver { return DriverSQL }

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	var stmt string
	switch s.dialect {
	case sqlutil.Postgres:
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL,
			ea BIGINT NOT NULL
		);`, s.table)
	case sqlutil.MySQL:
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k VARBINARY(255) PRIMARY KEY,
			v LONGBLOB NOT NULL,
			ea BIGINT NOT NULL
		) ENGINE=InnoDB;`, s.table)
	default:
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			ea INTEGER NOT NULL
		);`, s.table)
	}
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	var exp int64
	err := s.getStmt.QueryRowContext(ctx, scopedKey(s.prefix, key)).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().UnixMilli() > exp {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	exp := time.Now().Add(ttl).UnixMilli()
	_, err := s.upsertStmt.ExecContext(ctx, scopedKey(s.prefix, key), value, exp, value, exp)
	return err
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	_, err := s.deleteStmt.ExecContext(ctx, scopedKey(s.prefix, key))
	return err
}

func (s *sqlStore) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, scopedKey(s.prefix, k))
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE k IN (%s)", s.table, s.dialect.Placeholders(1, len(keys)))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqlStore) Flush(ctx context.Context) error {
	_, err := s.flushStmt.ExecContext(ctx)
	return err
}

func (s *sqlStore) upsertSQL() string {
	p := s.dialect.Placeholder
	switch s.dialect {
	case sqlutil.MySQL:
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON DUPLICATE KEY UPDATE v = %s, ea = %s", s.table, p(1), p(2), p(3), p(4), p(5))
	default:
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON CONFLICT (k) DO UPDATE SET v = %s, ea = %s", s.table, p(1), p(2), p(3), p(4), p(5))
	}
}

func (s *sqlStore) prepareStatements(ctx context.Context) error {
	p1 := s.dialect.Placeholder(1)
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.getStmt, fmt.Sprintf("SELECT v, ea FROM %s WHERE k = %s", s.table, p1)},
		{&s.upsertStmt, s.upsertSQL()},
		{&s.deleteStmt, fmt.Sprintf("DELETE FROM %s WHERE k = %s", s.table, p1)},
		{&s.flushStmt, fmt.Sprintf("DELETE FROM %s", s.table)},
	}
	for _, st := range stmts {
		prepared, err := s.db.PrepareContext(ctx, st.query)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", st.query, err)
		}
		*st.dst = prepared
	}
	return nil
}
