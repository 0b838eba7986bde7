package sqlutil

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"postgres": Postgres,
		"pgx":      Postgres,
		"MySQL":    MySQL,
		"sqlite":   SQLite,
		"sqlite3":  SQLite,
	}
	for in, want := range cases {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestPlaceholders(t *testing.T) {
	if got := Postgres.Placeholders(3, 2); got != "$3, $4" {
		t.Fatalf("postgres placeholders = %q", got)
	}
	if got := MySQL.Placeholders(1, 3); got != "?, ?, ?" {
		t.Fatalf("mysql placeholders = %q", got)
	}
	if got := SQLite.DriverName(); got != "sqlite" {
		t.Fatalf("sqlite driver name = %q", got)
	}
	if got := Postgres.DriverName(); got != "pgx" {
		t.Fatalf("postgres driver name = %q", got)
	}
}

func TestIsDuplicate(t *testing.T) {
	if !Postgres.IsDuplicate(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("expected pg unique violation to be duplicate")
	}
	if Postgres.IsDuplicate(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a duplicate")
	}
	if !MySQL.IsDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}) {
		t.Fatalf("expected mysql 1062 to be duplicate")
	}
	if !SQLite.IsDuplicate(errors.New("constraint failed: UNIQUE constraint failed: ratings.user_id")) {
		t.Fatalf("expected sqlite message to be duplicate")
	}
	if SQLite.IsDuplicate(nil) {
		t.Fatalf("nil is not a duplicate")
	}
}

func TestValidateTableName(t *testing.T) {
	for _, ok := range []string{"cache_entries", "public.cache_entries"} {
		if err := ValidateTableName(ok); err != nil {
			t.Fatalf("ValidateTableName(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "cache-entries", "x;drop table y", "a..b"} {
		if err := ValidateTableName(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
