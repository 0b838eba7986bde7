package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const ratingColumns = "id, user_id, movie_id, score, created_at, updated_at"

func scanRating(row scanner) (Rating, error) {
	var (
		r                Rating
		created, updated int64
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.MovieID, &r.Score, &created, &updated); err != nil {
		return Rating{}, err
	}
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(updated)
	return r, nil
}

// FindRating returns the rating userID gave movieID.
func (q queries) FindRating(ctx context.Context, userID, movieID int64) (Rating, error) {
	p := &ph{dialect: q.dialect}
	stmt := "SELECT " + ratingColumns + " FROM ratings WHERE user_id = " + p.add(userID) + " AND movie_id = " + p.add(movieID)
	r, err := scanRating(q.db.QueryRowContext(ctx, stmt, p.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Rating{}, ErrNotFound
	}
	if err != nil {
		return Rating{}, fmt.Errorf("find rating: %w", err)
	}
	return r, nil
}

// CreateRating inserts a new rating. A second rating for the same pair fails
// with an error matching ErrDuplicate.
func (q queries) CreateRating(ctx context.Context, userID, movieID int64, score int) (Rating, error) {
	now := millis(q.now())
	p := &ph{dialect: q.dialect}
	stmt := "INSERT INTO ratings (user_id, movie_id, score, created_at, updated_at) VALUES (" +
		p.add(userID) + ", " + p.add(movieID) + ", " + p.add(score) + ", " + p.add(now) + ", " + p.add(now) + ")"
	id, err := q.insertID(ctx, stmt, p.args...)
	if err != nil {
		return Rating{}, fmt.Errorf("insert rating: %w", err)
	}
	return Rating{
		ID:        id,
		UserID:    userID,
		MovieID:   movieID,
		Score:     score,
		CreatedAt: fromMillis(now),
		UpdatedAt: fromMillis(now),
	}, nil
}

// UpdateRatingScore changes the score of rating id in place.
func (q queries) UpdateRatingScore(ctx context.Context, id int64, score int) (Rating, error) {
	p := &ph{dialect: q.dialect}
	stmt := "UPDATE ratings SET score = " + p.add(score) + ", updated_at = " + p.add(millis(q.now())) + " WHERE id = " + p.add(id)
	if _, err := q.db.ExecContext(ctx, stmt, p.args...); err != nil {
		return Rating{}, fmt.Errorf("update rating %d: %w", id, err)
	}
	p = &ph{dialect: q.dialect}
	r, err := scanRating(q.db.QueryRowContext(ctx, "SELECT "+ratingColumns+" FROM ratings WHERE id = "+p.add(id), p.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Rating{}, ErrNotFound
	}
	if err != nil {
		return Rating{}, fmt.Errorf("reload rating %d: %w", id, err)
	}
	return r, nil
}

// RatingsWithGenres lists every rating userID made, with each movie's genre.
func (q queries) RatingsWithGenres(ctx context.Context, userID int64) ([]RatedMovie, error) {
	p := &ph{dialect: q.dialect}
	stmt := "SELECT r.movie_id, r.score, m.genre FROM ratings r JOIN movies m ON m.id = r.movie_id WHERE r.user_id = " +
		p.add(userID) + " ORDER BY r.movie_id"
	rows, err := q.db.QueryContext(ctx, stmt, p.args...)
	if err != nil {
		return nil, fmt.Errorf("load ratings for user %d: %w", userID, err)
	}
	defer rows.Close()
	var out []RatedMovie
	for rows.Next() {
		var rm RatedMovie
		if err := rows.Scan(&rm.MovieID, &rm.Score, &rm.Genre); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// RaterIDs lists the users who rated movieID.
func (q queries) RaterIDs(ctx context.Context, movieID int64) ([]int64, error) {
	return q.userIDs(ctx, "ratings", movieID)
}

// OwnerIDs lists the users who own movieID.
func (q queries) OwnerIDs(ctx context.Context, movieID int64) ([]int64, error) {
	return q.userIDs(ctx, "user_movies", movieID)
}

func (q queries) userIDs(ctx context.Context, table string, movieID int64) ([]int64, error) {
	p := &ph{dialect: q.dialect}
	rows, err := q.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM "+table+" WHERE movie_id = "+p.add(movieID), p.args...)
	if err != nil {
		return nil, fmt.Errorf("load %s users of movie %d: %w", table, movieID, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
