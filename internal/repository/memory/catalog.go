package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
)

// CatalogStore holds static catalog data for the in-memory deployment.
// Seed* methods load fixtures at startup (or in tests).
type CatalogStore struct {
	mu        sync.Mutex
	seats     map[int64]domain.Seat
	foods     map[int64]domain.Food
	discounts map[int64]domain.Discount
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		seats:     make(map[int64]domain.Seat),
		foods:     make(map[int64]domain.Food),
		discounts: make(map[int64]domain.Discount),
	}
}

func (s *CatalogStore) SeedSeats(seats ...domain.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range seats {
		s.seats[seat.ID] = seat
	}
}

func (s *CatalogStore) SeedFoods(foods ...domain.Food) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range foods {
		s.foods[f.ID] = f
	}
}

func (s *CatalogStore) SeedDiscounts(discounts ...domain.Discount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range discounts {
		s.discounts[d.ID] = d
	}
}

func (s *CatalogStore) SeatsByRoom(ctx context.Context, roomID int64) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Seat
	for _, seat := range s.seats {
		if seat.RoomID == roomID {
			out = append(out, seat)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (s *CatalogStore) SeatsByIDs(ctx context.Context, seatIDs []int64) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Seat
	for _, id := range seatIDs {
		if seat, ok := s.seats[id]; ok {
			out = append(out, seat)
		}
	}

	return out, nil
}

func (s *CatalogStore) FoodByIDs(ctx context.Context, foodIDs []int64) ([]domain.Food, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Food
	for _, id := range foodIDs {
		if f, ok := s.foods[id]; ok {
			out = append(out, f)
		}
	}

	return out, nil
}

func (s *CatalogStore) DiscountByID(ctx context.Context, id int64) (*domain.Discount, error) {
	const op = "memory.CatalogStore.DiscountByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discounts[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return &d, nil
}

// ShowtimeStore is the in-memory showtime registry.
type ShowtimeStore struct {
	mu        sync.Mutex
	nextID    int64
	showtimes map[int64]domain.Showtime
}

func NewShowtimeStore() *ShowtimeStore {
	return &ShowtimeStore{nextID: 1, showtimes: make(map[int64]domain.Showtime)}
}

func (s *ShowtimeStore) Create(ctx context.Context, st *domain.Showtime) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	cp := *st
	cp.ID = id
	s.showtimes[id] = cp

	return id, nil
}

func (s *ShowtimeStore) Get(ctx context.Context, id int64) (*domain.Showtime, error) {
	const op = "memory.ShowtimeStore.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.showtimes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return &st, nil
}

func (s *ShowtimeStore) Update(ctx context.Context, st *domain.Showtime) error {
	const op = "memory.ShowtimeStore.Update"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.showtimes[st.ID]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	s.showtimes[st.ID] = *st

	return nil
}

func (s *ShowtimeStore) Delete(ctx context.Context, id int64) error {
	const op = "memory.ShowtimeStore.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.showtimes[id]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	delete(s.showtimes, id)

	return nil
}
