package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goforj/moviematch/internal/sqlutil"
)

const movieColumns = "m.id, m.title, m.director, m.year, m.genre, m.synopsis, m.created_at, m.updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanMovie(row scanner, extra ...any) (Movie, error) {
	var (
		m                Movie
		synopsis         sql.NullString
		created, updated int64
	)
	dest := append([]any{&m.ID, &m.Title, &m.Director, &m.Year, &m.Genre, &synopsis, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Movie{}, err
	}
	if synopsis.Valid {
		s := synopsis.String
		m.Synopsis = &s
	}
	m.CreatedAt = fromMillis(created)
	m.UpdatedAt = fromMillis(updated)
	return m, nil
}

func collectMovies(rows *sql.Rows) ([]Movie, error) {
	defer rows.Close()
	var out []Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMovie loads a movie by id.
func (q queries) GetMovie(ctx context.Context, id int64) (Movie, error) {
	p := &ph{dialect: q.dialect}
	stmt := "SELECT " + movieColumns + " FROM movies m WHERE m.id = " + p.add(id)
	m, err := scanMovie(q.db.QueryRowContext(ctx, stmt, p.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, ErrNotFound
	}
	if err != nil {
		return Movie{}, fmt.Errorf("get movie %d: %w", id, err)
	}
	return m, nil
}

// GetMovieForUser loads a movie together with userID's score for it.
func (q queries) GetMovieForUser(ctx context.Context, id, userID int64) (MovieWithRating, error) {
	p := &ph{dialect: q.dialect}
	stmt := "SELECT " + movieColumns + ", r.score FROM movies m" +
		" LEFT JOIN ratings r ON r.movie_id = m.id AND r.user_id = " + p.add(userID) +
		" WHERE m.id = " + p.add(id)
	var score sql.NullInt64
	m, err := scanMovie(q.db.QueryRowContext(ctx, stmt, p.args...), &score)
	if errors.Is(err, sql.ErrNoRows) {
		return MovieWithRating{}, ErrNotFound
	}
	if err != nil {
		return MovieWithRating{}, fmt.Errorf("get movie %d for user %d: %w", id, userID, err)
	}
	out := MovieWithRating{Movie: m}
	if score.Valid {
		s := int(score.Int64)
		out.UserRating = &s
	}
	return out, nil
}

// CreateMovie inserts the movie and its user_movies row in this transaction.
func (tx *Tx) CreateMovie(ctx context.Context, ownerID int64, in MovieInput) (Movie, error) {
	now := tx.now()
	p := &ph{dialect: tx.dialect}
	stmt := "INSERT INTO movies (title, director, year, genre, synopsis, created_at, updated_at) VALUES (" +
		strings.Join([]string{
			p.add(in.Title), p.add(in.Director), p.add(in.Year), p.add(in.Genre),
			p.add(nullString(in.Synopsis)), p.add(millis(now)), p.add(millis(now)),
		}, ", ") + ")"
	id, err := tx.insertID(ctx, stmt, p.args...)
	if err != nil {
		return Movie{}, fmt.Errorf("insert movie: %w", err)
	}
	if err := tx.LinkOwner(ctx, ownerID, id); err != nil {
		return Movie{}, err
	}
	return tx.GetMovie(ctx, id)
}

// LinkOwner records ownerID as an owner of movieID.
func (q queries) LinkOwner(ctx context.Context, ownerID, movieID int64) error {
	p := &ph{dialect: q.dialect}
	stmt := "INSERT INTO user_movies (user_id, movie_id) VALUES (" + p.add(ownerID) + ", " + p.add(movieID) + ")"
	if _, err := q.db.ExecContext(ctx, stmt, p.args...); err != nil {
		return fmt.Errorf("link owner %d to movie %d: %w", ownerID, movieID, q.duplicate(err))
	}
	return nil
}

// UpdateMovie overwrites the writable fields of a movie.
func (q queries) UpdateMovie(ctx context.Context, id int64, in MovieInput) (Movie, error) {
	if _, err := q.GetMovie(ctx, id); err != nil {
		return Movie{}, err
	}
	p := &ph{dialect: q.dialect}
	stmt := "UPDATE movies SET title = " + p.add(in.Title) +
		", director = " + p.add(in.Director) +
		", year = " + p.add(in.Year) +
		", genre = " + p.add(in.Genre) +
		", synopsis = " + p.add(nullString(in.Synopsis)) +
		", updated_at = " + p.add(millis(q.now())) +
		" WHERE id = " + p.add(id)
	if _, err := q.db.ExecContext(ctx, stmt, p.args...); err != nil {
		return Movie{}, fmt.Errorf("update movie %d: %w", id, err)
	}
	return q.GetMovie(ctx, id)
}

func (q queries) ownedWhere(p *ph, ownerID int64, f MovieFilter) string {
	var b strings.Builder
	b.WriteString(" FROM movies m JOIN user_movies um ON um.movie_id = m.id WHERE um.user_id = ")
	b.WriteString(p.add(ownerID))
	if f.Genre != "" {
		b.WriteString(" AND LOWER(m.genre) LIKE " + p.add("%"+strings.ToLower(f.Genre)+"%"))
	}
	if f.Director != "" {
		b.WriteString(" AND LOWER(m.director) LIKE " + p.add("%"+strings.ToLower(f.Director)+"%"))
	}
	if f.Year != 0 {
		b.WriteString(" AND m.year = " + p.add(f.Year))
	}
	return b.String()
}

// ListMoviesByUser pages through the movies ownerID owns, newest first.
func (q queries) ListMoviesByUser(ctx context.Context, ownerID int64, f MovieFilter, limit, offset int) ([]Movie, error) {
	p := &ph{dialect: q.dialect}
	stmt := "SELECT " + movieColumns + q.ownedWhere(p, ownerID, f) +
		" ORDER BY m.created_at DESC, m.id DESC LIMIT " + p.add(limit) + " OFFSET " + p.add(offset)
	rows, err := q.db.QueryContext(ctx, stmt, p.args...)
	if err != nil {
		return nil, fmt.Errorf("list movies for user %d: %w", ownerID, err)
	}
	return collectMovies(rows)
}

// CountMoviesByUser counts the movies ListMoviesByUser would page through.
func (q queries) CountMoviesByUser(ctx context.Context, ownerID int64, f MovieFilter) (int, error) {
	p := &ph{dialect: q.dialect}
	var n int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*)"+q.ownedWhere(p, ownerID, f), p.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies for user %d: %w", ownerID, err)
	}
	return n, nil
}

// MovieBelongsToUser reports whether userID owns movieID.
func (q queries) MovieBelongsToUser(ctx context.Context, movieID, userID int64) (bool, error) {
	p := &ph{dialect: q.dialect}
	stmt := "SELECT 1 FROM user_movies WHERE user_id = " + p.add(userID) + " AND movie_id = " + p.add(movieID)
	var one int
	err := q.db.QueryRowContext(ctx, stmt, p.args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check owner of movie %d: %w", movieID, err)
	}
	return true, nil
}

// FindCandidates returns movies matching any of the query's genres that are
// not excluded. Matching is a plain substring test on the genre string.
func (q queries) FindCandidates(ctx context.Context, cq CandidateQuery) ([]Movie, error) {
	if len(cq.Genres) == 0 {
		return nil, nil
	}
	p := &ph{dialect: q.dialect}
	col := "m.genre"
	if cq.CaseInsensitive {
		col = "LOWER(m.genre)"
	}
	ors := make([]string, 0, len(cq.Genres))
	for _, g := range cq.Genres {
		if cq.CaseInsensitive {
			g = strings.ToLower(g)
		}
		ors = append(ors, q.contains(col, p.add(g)))
	}
	stmt := "SELECT " + movieColumns + " FROM movies m WHERE (" + strings.Join(ors, " OR ") + ")"
	if len(cq.ExcludeIDs) > 0 {
		stmt += " AND m.id NOT IN (" + p.list(cq.ExcludeIDs) + ")"
	}
	stmt += " ORDER BY m.id"
	if cq.Limit > 0 {
		stmt += " LIMIT " + p.add(cq.Limit)
	}
	rows, err := q.db.QueryContext(ctx, stmt, p.args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return collectMovies(rows)
}

// contains is a case-sensitive substring test. MySQL's default collations
// fold case, so the column is compared as binary there.
func (q queries) contains(col, needle string) string {
	switch q.dialect {
	case sqlutil.Postgres:
		return "STRPOS(" + col + ", " + needle + ") > 0"
	case sqlutil.MySQL:
		return "INSTR(CAST(" + col + " AS BINARY), " + needle + ") > 0"
	}
	return "INSTR(" + col + ", " + needle + ") > 0"
}

// DeleteMovieCascade deletes the movie's ratings, then its ownership rows,
// then the movie itself, returning the deleted movie.
func (tx *Tx) DeleteMovieCascade(ctx context.Context, movieID int64) (Movie, error) {
	m, err := tx.GetMovie(ctx, movieID)
	if err != nil {
		return Movie{}, err
	}
	for _, table := range []string{"ratings", "user_movies"} {
		p := &ph{dialect: tx.dialect}
		if _, err := tx.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE movie_id = "+p.add(movieID), p.args...); err != nil {
			return Movie{}, fmt.Errorf("delete %s of movie %d: %w", table, movieID, err)
		}
	}
	p := &ph{dialect: tx.dialect}
	res, err := tx.db.ExecContext(ctx, "DELETE FROM movies WHERE id = "+p.add(movieID), p.args...)
	if err != nil {
		return Movie{}, fmt.Errorf("delete movie %d: %w", movieID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Movie{}, ErrNotFound
	}
	return m, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
