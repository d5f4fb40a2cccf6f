package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
)

// CatalogRepo is the read-only view of catalog data this subsystem consumes.
// Catalog writes belong to the admin CRUD surface, not here.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func (r *CatalogRepo) SeatsByRoom(ctx context.Context, roomID int64) ([]domain.Seat, error) {
	const op = "postgres.CatalogRepo.SeatsByRoom"

	rows, err := r.pool.Query(ctx,
		`SELECT id, room_id, name, price_cents
		 FROM seats WHERE room_id = $1
		 ORDER BY name`,
		roomID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.RoomID, &s.Name, &s.PriceCents); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) SeatsByIDs(ctx context.Context, seatIDs []int64) ([]domain.Seat, error) {
	const op = "postgres.CatalogRepo.SeatsByIDs"

	rows, err := r.pool.Query(ctx,
		`SELECT id, room_id, name, price_cents
		 FROM seats WHERE id = ANY($1)`,
		seatIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.RoomID, &s.Name, &s.PriceCents); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) FoodByIDs(ctx context.Context, foodIDs []int64) ([]domain.Food, error) {
	const op = "postgres.CatalogRepo.FoodByIDs"

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price_cents, status = 'available'
		 FROM foods WHERE id = ANY($1)`,
		foodIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Food
	for rows.Next() {
		var f domain.Food
		if err := rows.Scan(&f.ID, &f.Name, &f.PriceCents, &f.Available); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) DiscountByID(ctx context.Context, id int64) (*domain.Discount, error) {
	const op = "postgres.CatalogRepo.DiscountByID"

	var d domain.Discount
	if err := r.pool.QueryRow(ctx,
		`SELECT id, code, percent, day_start, day_end, status = 'active'
		 FROM discounts WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Code, &d.Percent, &d.DayStart, &d.DayEnd, &d.Active); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &d, nil
}
