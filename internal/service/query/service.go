package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
	redisx "github.com/HuyVanh/my-backend-api-movie/internal/redis"
	redisrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/redis"
)

var ErrShowtimeNotFound = errors.New("showtime not found")

// Seat snapshots go stale the moment a hold expires, so the cache TTL stays
// short and writes invalidate eagerly.
const seatMapTTL = 5 * time.Second

type SeatView struct {
	SeatID     int64             `json:"seatId"`
	Name       string            `json:"name"`
	PriceCents int64             `json:"priceCents"`
	Status     domain.SeatStatus `json:"status"`
}

type SeatMap struct {
	ShowtimeID int64             `json:"showtimeId"`
	Seats      []SeatView        `json:"seats"`
	Summary    domain.SeatCounts `json:"summary"`

	// MissingSeatIDs lists catalog seats with no state row, a data-integrity
	// gap that must be visible rather than silently sellable.
	MissingSeatIDs []int64 `json:"missingSeatIds,omitempty"`
}

// Service serves read-side seat snapshots with lazy hold expiry applied.
type Service struct {
	log        *slog.Logger
	seatStates repository.SeatStateStore
	showtimes  repository.ShowtimeStore
	catalog    repository.CatalogStore
	cache      *redisrepo.Cache
}

func New(
	log *slog.Logger,
	seatStates repository.SeatStateStore,
	showtimes repository.ShowtimeStore,
	catalog repository.CatalogStore,
	cache *redisrepo.Cache,
) *Service {
	return &Service{
		log:        log,
		seatStates: seatStates,
		showtimes:  showtimes,
		catalog:    catalog,
		cache:      cache,
	}
}

// SeatMap returns every seat of the showtime's room joined with its current
// effective status.
func (s *Service) SeatMap(ctx context.Context, showtimeID int64) (*SeatMap, error) {
	if s.cache == nil {
		return s.buildSeatMap(ctx, showtimeID)
	}

	m, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeyShowtimeSeats(showtimeID),
		seatMapTTL,
		func(ctx context.Context) (*SeatMap, error) {
			return s.buildSeatMap(ctx, showtimeID)
		},
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Counts returns the availability summary for a showtime.
func (s *Service) Counts(ctx context.Context, showtimeID int64) (domain.SeatCounts, error) {
	m, err := s.SeatMap(ctx, showtimeID)
	if err != nil {
		return domain.SeatCounts{}, err
	}

	return m.Summary, nil
}

func (s *Service) buildSeatMap(ctx context.Context, showtimeID int64) (*SeatMap, error) {
	const op = "query.Service.buildSeatMap"

	st, err := s.showtimes.Get(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShowtimeNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()

	states, err := s.seatStates.States(ctx, showtimeID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	statusBySeat := make(map[int64]domain.SeatStatus, len(states))
	for _, ss := range states {
		statusBySeat[ss.SeatID] = ss.Effective(now)
	}

	seats, err := s.catalog.SeatsByRoom(ctx, st.RoomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := &SeatMap{
		ShowtimeID: showtimeID,
		Seats:      make([]SeatView, 0, len(seats)),
	}

	for _, seat := range seats {
		status, ok := statusBySeat[seat.ID]
		if !ok {
			m.MissingSeatIDs = append(m.MissingSeatIDs, seat.ID)
			continue
		}

		m.Seats = append(m.Seats, SeatView{
			SeatID:     seat.ID,
			Name:       seat.Name,
			PriceCents: seat.PriceCents,
			Status:     status,
		})

		m.Summary.Total++
		switch status {
		case domain.SeatAvailable:
			m.Summary.Available++
		case domain.SeatReserved:
			m.Summary.Reserved++
		case domain.SeatBooked:
			m.Summary.Booked++
		}
	}

	if len(m.MissingSeatIDs) > 0 {
		s.log.Warn("seats without state rows", "showtime_id", showtimeID, "seat_ids", m.MissingSeatIDs)
	}

	return m, nil
}
