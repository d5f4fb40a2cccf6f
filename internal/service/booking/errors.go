package booking

import (
	"errors"
	"fmt"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
)

var (
	ErrInvalidInput       = errors.New("invalid booking request")
	ErrShowtimeNotFound   = errors.New("showtime not found")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrSeatNotFound       = errors.New("seat not found")
	ErrSeatRoomMismatch   = errors.New("seat does not belong to the showtime room")
	ErrFoodNotFound       = errors.New("food item not found")
	ErrFoodUnavailable    = errors.New("food item is unavailable")
	ErrDiscountNotFound   = errors.New("discount not found")
	ErrDiscountInactive   = errors.New("discount is not active")
	ErrSeatsUnavailable   = errors.New("some seats are unavailable")
	ErrSeatStateGap       = errors.New("seat has no state for this showtime")
	ErrHoldExpired        = errors.New("payment window expired")
	ErrTicketNotPending   = errors.New("ticket is not pending payment")
	ErrTicketNotComplete  = errors.New("ticket is not completed")
	ErrTicketCancelled    = errors.New("ticket is cancelled")
	ErrTicketUsed         = errors.New("ticket is already used")
	ErrTicketNotDeletable = errors.New("only cancelled tickets can be deleted")
)

// SeatConflictError reports which seats lost the race and what state they
// were in. Unwraps to ErrSeatsUnavailable.
type SeatConflictError struct {
	SeatIDs  []int64
	Statuses map[int64]domain.SeatStatus
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("some or all seats are unavailable: %v", e.SeatIDs)
}

func (e *SeatConflictError) Unwrap() error { return ErrSeatsUnavailable }
