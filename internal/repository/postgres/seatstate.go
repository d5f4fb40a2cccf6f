package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
)

// SeatStateRepo implements repository.SeatStateStore on Postgres. Every
// transition runs as a conditional UPDATE inside a serializable transaction,
// so concurrent requests for the same seats are totally ordered by the store.
type SeatStateRepo struct {
	store *Store
}

func (r *SeatStateRepo) Initialize(ctx context.Context, showtimeID, roomID int64, seatIDs []int64) error {
	const op = "postgres.SeatStateRepo.Initialize"

	return r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM seat_states WHERE showtime_id = $1)`,
			showtimeID,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}

		if exists {
			return fmt.Errorf("%s: %w", op, repository.ErrAlreadyInitialized)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO seat_states(showtime_id, seat_id, room_id, status)
			 SELECT $1, s.id, $2, 'available'
			 FROM unnest($3::bigint[]) AS s(id)`,
			showtimeID, roomID, seatIDs,
		); err != nil {
			return wrapDBErr(op, err)
		}

		return nil
	})
}

func (r *SeatStateRepo) States(ctx context.Context, showtimeID int64, now time.Time) ([]domain.SeatState, error) {
	const op = "postgres.SeatStateRepo.States"

	rows, err := r.store.pool.Query(ctx,
		`SELECT seat_id, room_id,
		        CASE WHEN status = 'reserved' AND hold_expires_at <= $2
		             THEN 'available' ELSE status END,
		        hold_id, hold_expires_at, order_id
		 FROM seat_states
		 WHERE showtime_id = $1
		 ORDER BY seat_id`,
		showtimeID, now,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.SeatState
	for rows.Next() {
		st := domain.SeatState{ShowtimeID: showtimeID}
		var status string

		if err := rows.Scan(
			&st.SeatID,
			&st.RoomID,
			&status,
			&st.HoldID,
			&st.HoldExpiresAt,
			&st.OrderID,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		st.Status = domain.SeatStatus(status)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *SeatStateRepo) TryTransition(
	ctx context.Context,
	showtimeID int64,
	seatIDs []int64,
	t repository.Transition,
) error {
	const op = "postgres.SeatStateRepo.TryTransition"

	if len(seatIDs) == 0 {
		return nil
	}

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		// Expired holds count as available from here on. Releasing them
		// inside the transaction keeps the ANY(from) check exact.
		if _, err := tx.Exec(ctx,
			`UPDATE seat_states
			 SET status = 'available', hold_id = NULL, hold_expires_at = NULL
			 WHERE showtime_id = $1
			   AND status = 'reserved'
			   AND hold_expires_at <= now()`,
			showtimeID,
		); err != nil {
			return translateDBErr(err)
		}

		query, args := buildTransitionUpdate(showtimeID, seatIDs, t)

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return translateDBErr(err)
		}

		moved := make(map[int64]bool, len(seatIDs))
		for rows.Next() {
			var sid int64
			if err := rows.Scan(&sid); err != nil {
				rows.Close()
				return translateDBErr(err)
			}
			moved[sid] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return translateDBErr(err)
		}

		if len(moved) == len(seatIDs) {
			return nil
		}

		// Releasing an order only touches rows still bound to it; seats
		// already freed or re-sold stay as they are.
		if t.RequireOrder != "" && t.RequireHold == uuid.Nil {
			return nil
		}

		// Partial match: report and roll back so nothing is applied.
		if t.RequireHold != uuid.Nil {
			return repository.ErrHoldExpired
		}

		return r.conflictFor(ctx, tx, showtimeID, seatIDs, t, moved)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// conflictFor inspects the requested seats and names exactly the ones that
// blocked the transition. Seats the UPDATE did move are skipped: their status
// inside the open transaction is already the target one.
func (r *SeatStateRepo) conflictFor(
	ctx context.Context,
	tx DB,
	showtimeID int64,
	seatIDs []int64,
	t repository.Transition,
	moved map[int64]bool,
) error {
	rows, err := tx.Query(ctx,
		`SELECT seat_id, status FROM seat_states
		 WHERE showtime_id = $1 AND seat_id = ANY($2)`,
		showtimeID, seatIDs,
	)
	if err != nil {
		return translateDBErr(err)
	}

	defer rows.Close()

	found := make(map[int64]domain.SeatStatus, len(seatIDs))
	for rows.Next() {
		var sid int64
		var status string
		if err := rows.Scan(&sid, &status); err != nil {
			return translateDBErr(err)
		}
		found[sid] = domain.SeatStatus(status)
	}
	if err := rows.Err(); err != nil {
		return translateDBErr(err)
	}

	var missing []int64
	conflict := &repository.SeatConflictError{Statuses: make(map[int64]domain.SeatStatus)}

	for _, sid := range seatIDs {
		if moved[sid] {
			continue
		}
		status, ok := found[sid]
		if !ok {
			missing = append(missing, sid)
			continue
		}
		conflict.SeatIDs = append(conflict.SeatIDs, sid)
		conflict.Statuses[sid] = status
	}

	if len(missing) > 0 {
		return &repository.MissingSeatStateError{SeatIDs: missing}
	}

	return conflict
}

func buildTransitionUpdate(showtimeID int64, seatIDs []int64, t repository.Transition) (string, []any) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	args := []any{showtimeID, seatIDs, from}

	var sb strings.Builder
	sb.WriteString(`UPDATE seat_states SET `)

	switch t.To {
	case domain.SeatReserved:
		args = append(args, t.HoldID, time.Now().Add(t.HoldTTL))
		sb.WriteString(`status = 'reserved', hold_id = $4, hold_expires_at = $5, order_id = NULL`)
	case domain.SeatBooked:
		args = append(args, t.OrderID)
		sb.WriteString(`status = 'booked', hold_id = NULL, hold_expires_at = NULL, order_id = $4`)
	default:
		sb.WriteString(`status = 'available', hold_id = NULL, hold_expires_at = NULL, order_id = NULL`)
	}

	sb.WriteString(` WHERE showtime_id = $1 AND seat_id = ANY($2) AND status = ANY($3)`)

	if t.RequireHold != uuid.Nil {
		args = append(args, t.RequireHold)
		fmt.Fprintf(&sb, ` AND hold_id = $%d AND hold_expires_at > now()`, len(args))
	}

	if t.RequireOrder != "" {
		args = append(args, t.RequireOrder)
		fmt.Fprintf(&sb, ` AND order_id = $%d`, len(args))
	}

	sb.WriteString(` RETURNING seat_id`)

	return sb.String(), args
}

func (r *SeatStateRepo) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "postgres.SeatStateRepo.ReleaseExpired"

	tag, err := r.store.pool.Exec(ctx,
		`UPDATE seat_states
		 SET status = 'available', hold_id = NULL, hold_expires_at = NULL
		 WHERE status = 'reserved' AND hold_expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *SeatStateRepo) Teardown(ctx context.Context, showtimeID int64) error {
	const op = "postgres.SeatStateRepo.Teardown"

	if _, err := r.store.pool.Exec(ctx,
		`DELETE FROM seat_states WHERE showtime_id = $1`,
		showtimeID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
