package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
)

// TicketRepo implements repository.TicketStore. Lifecycle updates are
// conditional on the current status so a step cannot be applied twice.
type TicketRepo struct {
	store *Store
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	const op = "postgres.TicketRepo.Create"

	return r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tickets(
				order_id, showtime_id, movie_id, cinema_id, room_id,
				user_id, full_name, email, phone,
				discount_id, hold_id, payment_method, status,
				seat_total_cents, food_total_cents, discount_cents, total_cents,
				created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			t.OrderID, t.ShowtimeID, t.MovieID, t.CinemaID, t.RoomID,
			t.Buyer.UserID, t.Buyer.FullName, t.Buyer.Email, t.Buyer.Phone,
			t.DiscountID, t.HoldID, string(t.PaymentMethod), string(t.Status),
			t.SeatTotalCents, t.FoodTotalCents, t.DiscountCents, t.TotalCents,
			t.CreatedAt,
		); err != nil {
			return wrapDBErr(op, err)
		}

		batch := &pgx.Batch{}
		for i, sid := range t.SeatIDs {
			batch.Queue(
				`INSERT INTO ticket_seats(order_id, seat_id, position)
				 VALUES ($1, $2, $3)`,
				t.OrderID, sid, i,
			)
		}
		for _, fl := range t.FoodLines {
			batch.Queue(
				`INSERT INTO ticket_food_items(order_id, food_id, quantity, price_cents)
				 VALUES ($1, $2, $3, $4)`,
				t.OrderID, fl.FoodID, fl.Quantity, fl.PriceCents,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return wrapDBErr(op, err)
		}

		return nil
	})
}

func (r *TicketRepo) Get(ctx context.Context, orderID string) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.Get"

	db := r.store.pool

	t, err := scanTicket(db.QueryRow(ctx, selectTicket+` WHERE order_id = $1`, orderID))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT seat_id FROM ticket_seats WHERE order_id = $1 ORDER BY position`,
		orderID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var sid int64
		if err := rows.Scan(&sid); err != nil {
			return nil, wrapDBErr(op, err)
		}
		t.SeatIDs = append(t.SeatIDs, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	foodRows, err := db.Query(ctx,
		`SELECT food_id, quantity, price_cents
		 FROM ticket_food_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer foodRows.Close()

	for foodRows.Next() {
		var fl domain.FoodLine
		if err := foodRows.Scan(&fl.FoodID, &fl.Quantity, &fl.PriceCents); err != nil {
			return nil, wrapDBErr(op, err)
		}
		t.FoodLines = append(t.FoodLines, fl)
	}
	if err := foodRows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByEmail"

	rows, err := r.store.pool.Query(ctx,
		selectTicket+` WHERE email = $1 ORDER BY created_at DESC`,
		email,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	for i := range out {
		seatRows, err := r.store.pool.Query(ctx,
			`SELECT seat_id FROM ticket_seats WHERE order_id = $1 ORDER BY position`,
			out[i].OrderID,
		)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		for seatRows.Next() {
			var sid int64
			if err := seatRows.Scan(&sid); err != nil {
				seatRows.Close()
				return nil, wrapDBErr(op, err)
			}
			out[i].SeatIDs = append(out[i].SeatIDs, sid)
		}
		seatRows.Close()
		if err := seatRows.Err(); err != nil {
			return nil, wrapDBErr(op, err)
		}
	}

	return out, nil
}

func (r *TicketRepo) MarkCompleted(ctx context.Context, orderID string, at time.Time) error {
	const op = "postgres.TicketRepo.MarkCompleted"

	return r.conditionalUpdate(ctx, op, orderID,
		`UPDATE tickets SET status = 'completed', confirmed_at = $2
		 WHERE order_id = $1 AND status = 'pending_payment'`,
		at,
	)
}

func (r *TicketRepo) MarkCancelled(ctx context.Context, orderID, reason string, at time.Time) error {
	const op = "postgres.TicketRepo.MarkCancelled"

	tag, err := r.store.pool.Exec(ctx,
		`UPDATE tickets SET status = 'cancelled', cancelled_at = $2, cancel_reason = $3
		 WHERE order_id = $1 AND status IN ('pending_payment', 'completed')`,
		orderID, at, reason,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return r.statusMismatch(ctx, op, orderID)
	}

	return nil
}

func (r *TicketRepo) MarkUsed(ctx context.Context, orderID string, at time.Time) error {
	const op = "postgres.TicketRepo.MarkUsed"

	return r.conditionalUpdate(ctx, op, orderID,
		`UPDATE tickets SET status = 'used', used_at = $2
		 WHERE order_id = $1 AND status = 'completed'`,
		at,
	)
}

func (r *TicketRepo) Delete(ctx context.Context, orderID string) error {
	const op = "postgres.TicketRepo.Delete"

	return r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_seats WHERE order_id = $1`, orderID); err != nil {
			return wrapDBErr(op, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_food_items WHERE order_id = $1`, orderID); err != nil {
			return wrapDBErr(op, err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM tickets WHERE order_id = $1`, orderID)
		if err != nil {
			return wrapDBErr(op, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}

		return nil
	})
}

func (r *TicketRepo) CountActiveByShowtime(ctx context.Context, showtimeID int64) (int64, error) {
	const op = "postgres.TicketRepo.CountActiveByShowtime"

	var n int64
	if err := r.store.pool.QueryRow(ctx,
		`SELECT count(*) FROM tickets
		 WHERE showtime_id = $1 AND status <> 'cancelled'`,
		showtimeID,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *TicketRepo) conditionalUpdate(ctx context.Context, op, orderID, query string, at time.Time) error {
	tag, err := r.store.pool.Exec(ctx, query, orderID, at)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return r.statusMismatch(ctx, op, orderID)
	}

	return nil
}

// statusMismatch distinguishes a missing ticket from one in the wrong state.
func (r *TicketRepo) statusMismatch(ctx context.Context, op, orderID string) error {
	var status string
	err := r.store.pool.QueryRow(ctx,
		`SELECT status FROM tickets WHERE order_id = $1`, orderID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if err != nil {
		return wrapDBErr(op, err)
	}

	return fmt.Errorf("%s: ticket is %s: %w", op, status, repository.ErrStateViolation)
}

const selectTicket = `
	SELECT order_id, showtime_id, movie_id, cinema_id, room_id,
	       user_id, full_name, email, phone,
	       discount_id, hold_id, payment_method, status,
	       seat_total_cents, food_total_cents, discount_cents, total_cents,
	       created_at, confirmed_at, cancelled_at, COALESCE(cancel_reason, ''), used_at
	FROM tickets`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var method, status string

	if err := row.Scan(
		&t.OrderID, &t.ShowtimeID, &t.MovieID, &t.CinemaID, &t.RoomID,
		&t.Buyer.UserID, &t.Buyer.FullName, &t.Buyer.Email, &t.Buyer.Phone,
		&t.DiscountID, &t.HoldID, &method, &status,
		&t.SeatTotalCents, &t.FoodTotalCents, &t.DiscountCents, &t.TotalCents,
		&t.CreatedAt, &t.ConfirmedAt, &t.CancelledAt, &t.CancelReason, &t.UsedAt,
	); err != nil {
		return nil, err
	}

	t.PaymentMethod = domain.PaymentMethod(method)
	t.Status = domain.TicketStatus(status)

	return &t, nil
}
