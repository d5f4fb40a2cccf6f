package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
)

// Transition describes one atomic conditional seat-state change. All
// cross-request coordination goes through this primitive: either every
// requested seat moves From -> To in one step, or nothing changes.
type Transition struct {
	// From lists the statuses a seat may currently be in. A reserved row
	// whose hold has expired counts as available.
	From []domain.SeatStatus
	To   domain.SeatStatus

	// HoldID and HoldTTL are set when To is reserved: the new hold identity
	// and its lifetime.
	HoldID  uuid.UUID
	HoldTTL time.Duration

	// RequireHold, when non-zero, restricts the transition to rows currently
	// owned by that hold (anti-hijack on confirm).
	RequireHold uuid.UUID

	// RequireOrder, when non-empty, restricts the transition to rows bound to
	// that order (release on ticket cancellation).
	RequireOrder string

	// OrderID is bound to the rows when To is booked.
	OrderID string
}

// SeatStateStore is the authoritative per-(seat, showtime) state record.
type SeatStateStore interface {
	// Initialize creates one available row per seat. Fails with
	// ErrAlreadyInitialized if any row exists for the showtime.
	Initialize(ctx context.Context, showtimeID, roomID int64, seatIDs []int64) error

	// States returns all rows for a showtime with lazy expiry applied:
	// expired holds read as available without being mutated.
	States(ctx context.Context, showtimeID int64, now time.Time) ([]domain.SeatState, error)

	// TryTransition applies t to the full seat set or to none of it.
	// Conflicts come back as *SeatConflictError (seats in the wrong status)
	// or *MissingSeatStateError (no row at all).
	TryTransition(ctx context.Context, showtimeID int64, seatIDs []int64, t Transition) error

	// ReleaseExpired resets every reserved row whose hold passed before now.
	// Idempotent; safe under concurrent sweepers.
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)

	// Teardown deletes all rows for a showtime. Callers guard against live
	// tickets before invoking it.
	Teardown(ctx context.Context, showtimeID int64) error
}

// TicketStore persists orders. Status changes are conditional on the current
// status so concurrent writers cannot double-apply a lifecycle step.
type TicketStore interface {
	Create(ctx context.Context, t *domain.Ticket) error
	Get(ctx context.Context, orderID string) (*domain.Ticket, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error)

	// MarkCompleted moves pending_payment -> completed.
	MarkCompleted(ctx context.Context, orderID string, at time.Time) error
	// MarkCancelled moves pending_payment or completed -> cancelled.
	MarkCancelled(ctx context.Context, orderID, reason string, at time.Time) error
	// MarkUsed moves completed -> used.
	MarkUsed(ctx context.Context, orderID string, at time.Time) error

	Delete(ctx context.Context, orderID string) error

	// CountActiveByShowtime counts non-cancelled tickets for a showtime.
	CountActiveByShowtime(ctx context.Context, showtimeID int64) (int64, error)
}

// ShowtimeStore owns showtime rows. Seat-state fan-out is orchestrated by the
// showtime service, not here.
type ShowtimeStore interface {
	Create(ctx context.Context, st *domain.Showtime) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Showtime, error)
	Update(ctx context.Context, st *domain.Showtime) error
	Delete(ctx context.Context, id int64) error
}

// CatalogStore is the read-only boundary to the catalog collaborator.
type CatalogStore interface {
	SeatsByRoom(ctx context.Context, roomID int64) ([]domain.Seat, error)
	SeatsByIDs(ctx context.Context, seatIDs []int64) ([]domain.Seat, error)
	FoodByIDs(ctx context.Context, foodIDs []int64) ([]domain.Food, error)
	DiscountByID(ctx context.Context, id int64) (*domain.Discount, error)
}
