package showtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
	redisrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/redis"
)

// Service owns showtime CRUD plus the seat-state fan-out: creating a showtime
// seeds one available row per seat in its room, and room changes or deletion
// tear that grid down again.
type Service struct {
	log        *slog.Logger
	showtimes  repository.ShowtimeStore
	seatStates repository.SeatStateStore
	tickets    repository.TicketStore
	catalog    repository.CatalogStore
	cache      *redisrepo.Cache
}

func New(
	log *slog.Logger,
	showtimes repository.ShowtimeStore,
	seatStates repository.SeatStateStore,
	tickets repository.TicketStore,
	catalog repository.CatalogStore,
	cache *redisrepo.Cache,
) *Service {
	return &Service{
		log:        log,
		showtimes:  showtimes,
		seatStates: seatStates,
		tickets:    tickets,
		catalog:    catalog,
		cache:      cache,
	}
}

// Create stores the showtime and initializes its seat grid. A room without
// seats is rejected up front so no showtime ever exists without states.
func (s *Service) Create(ctx context.Context, st *domain.Showtime) (int64, error) {
	const op = "showtime.Service.Create"

	if err := validate(st); err != nil {
		return 0, err
	}

	seatIDs, err := s.roomSeatIDs(ctx, st.RoomID)
	if err != nil {
		return 0, err
	}

	id, err := s.showtimes.Create(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.seatStates.Initialize(ctx, id, st.RoomID, seatIDs); err != nil {
		// Roll the showtime back so we never serve one with no grid.
		if derr := s.showtimes.Delete(ctx, id); derr != nil {
			s.log.Error("showtime rollback failed", "showtime_id", id, "error", derr)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Showtime, error) {
	const op = "showtime.Service.Get"

	st, err := s.showtimes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// Update rewrites the showtime. Moving it to another room rebuilds the seat
// grid, which is only allowed while no non-cancelled ticket exists.
func (s *Service) Update(ctx context.Context, st *domain.Showtime) error {
	const op = "showtime.Service.Update"

	if err := validate(st); err != nil {
		return err
	}

	cur, err := s.Get(ctx, st.ID)
	if err != nil {
		return err
	}

	roomChanged := cur.RoomID != st.RoomID

	var seatIDs []int64
	if roomChanged {
		if err := s.guardNoActiveTickets(ctx, st.ID); err != nil {
			return err
		}
		if seatIDs, err = s.roomSeatIDs(ctx, st.RoomID); err != nil {
			return err
		}
	}

	if err := s.showtimes.Update(ctx, st); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if roomChanged {
		if err := s.seatStates.Teardown(ctx, st.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := s.seatStates.Initialize(ctx, st.ID, st.RoomID, seatIDs); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.invalidate(ctx, st.ID)
	}

	return nil
}

// Delete removes the showtime and its seat grid. Refused while any
// non-cancelled ticket references it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "showtime.Service.Delete"

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.guardNoActiveTickets(ctx, id); err != nil {
		return err
	}

	if err := s.seatStates.Teardown(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.showtimes.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, id)

	return nil
}

func (s *Service) guardNoActiveTickets(ctx context.Context, showtimeID int64) error {
	const op = "showtime.Service.guardNoActiveTickets"

	n, err := s.tickets.CountActiveByShowtime(ctx, showtimeID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d tickets", ErrHasActiveTickets, n)
	}

	return nil
}

func (s *Service) roomSeatIDs(ctx context.Context, roomID int64) ([]int64, error) {
	const op = "showtime.Service.roomSeatIDs"

	seats, err := s.catalog.SeatsByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(seats) == 0 {
		return nil, ErrRoomHasNoSeats
	}

	ids := make([]int64, 0, len(seats))
	for _, seat := range seats {
		ids = append(ids, seat.ID)
	}

	return ids, nil
}

func (s *Service) invalidate(ctx context.Context, showtimeID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateShowtime(ctx, showtimeID); err != nil {
		s.log.Warn("seat cache invalidation failed", "showtime_id", showtimeID, "error", err)
	}
}

func validate(st *domain.Showtime) error {
	if st.MovieID <= 0 || st.CinemaID <= 0 || st.RoomID <= 0 {
		return fmt.Errorf("%w: movie, cinema and room are required", ErrInvalidInput)
	}
	if st.StartsAt.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidInput)
	}
	return nil
}
