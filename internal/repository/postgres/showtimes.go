package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
)

type ShowtimeRepo struct {
	pool *pgxpool.Pool
}

func (r *ShowtimeRepo) Create(ctx context.Context, st *domain.Showtime) (int64, error) {
	const op = "postgres.ShowtimeRepo.Create"

	var id int64
	if err := r.pool.QueryRow(ctx,
		`INSERT INTO showtimes(movie_id, cinema_id, room_id, show_date, starts_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		st.MovieID, st.CinemaID, st.RoomID, st.ShowDate, st.StartsAt,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *ShowtimeRepo) Get(ctx context.Context, id int64) (*domain.Showtime, error) {
	const op = "postgres.ShowtimeRepo.Get"

	var st domain.Showtime
	if err := r.pool.QueryRow(ctx,
		`SELECT id, movie_id, cinema_id, room_id, show_date, starts_at
		 FROM showtimes WHERE id = $1`,
		id,
	).Scan(&st.ID, &st.MovieID, &st.CinemaID, &st.RoomID, &st.ShowDate, &st.StartsAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &st, nil
}

func (r *ShowtimeRepo) Update(ctx context.Context, st *domain.Showtime) error {
	const op = "postgres.ShowtimeRepo.Update"

	tag, err := r.pool.Exec(ctx,
		`UPDATE showtimes
		 SET movie_id = $2, cinema_id = $3, room_id = $4, show_date = $5, starts_at = $6
		 WHERE id = $1`,
		st.ID, st.MovieID, st.CinemaID, st.RoomID, st.ShowDate, st.StartsAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *ShowtimeRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.ShowtimeRepo.Delete"

	tag, err := r.pool.Exec(ctx, `DELETE FROM showtimes WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}
