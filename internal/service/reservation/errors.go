package reservation

import (
	"errors"
	"fmt"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
)

var (
	ErrSeatsUnavailable = errors.New("some seats are unavailable")
	ErrHoldExpired      = errors.New("hold is expired")
	ErrNoSeatsSelected  = errors.New("no seats selected")
	ErrSeatStateGap     = errors.New("seat has no state for this showtime")
	ErrRateLimited      = errors.New("rate limited")
)

// SeatConflictError carries the exact seats that blocked a reservation, for
// client-side messaging. Unwraps to ErrSeatsUnavailable.
type SeatConflictError struct {
	SeatIDs  []int64
	Statuses map[int64]domain.SeatStatus
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("some or all seats are unavailable: %v", e.SeatIDs)
}

func (e *SeatConflictError) Unwrap() error { return ErrSeatsUnavailable }
