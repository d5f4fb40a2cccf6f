package showtime

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid showtime")
	ErrNotFound         = errors.New("showtime not found")
	ErrRoomHasNoSeats   = errors.New("room has no seats")
	ErrHasActiveTickets = errors.New("showtime has active tickets")
)
