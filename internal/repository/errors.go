package repository

import (
	"errors"
	"fmt"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyInitialized = errors.New("seat states already initialized")
	ErrSeatsUnavailable   = errors.New("some seats unavailable")
	ErrSeatStateMissing   = errors.New("seat state missing")
	ErrHoldExpired        = errors.New("hold expired")
	ErrStateViolation     = errors.New("state violation")
)

// SeatConflictError names the exact seats that blocked an all-or-nothing
// transition, with the status each one was observed in.
type SeatConflictError struct {
	SeatIDs  []int64
	Statuses map[int64]domain.SeatStatus
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.SeatIDs)
}

func (e *SeatConflictError) Unwrap() error { return ErrSeatsUnavailable }

// MissingSeatStateError flags requested seats that have no state row for the
// showtime. That is a data-integrity gap, never a sellable seat.
type MissingSeatStateError struct {
	SeatIDs []int64
}

func (e *MissingSeatStateError) Error() string {
	return fmt.Sprintf("no seat state for seats: %v", e.SeatIDs)
}

func (e *MissingSeatStateError) Unwrap() error { return ErrSeatStateMissing }
