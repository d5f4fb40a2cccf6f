package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
)

// SeatStateStore is the in-process variant of the seat-state arena for
// single-node deployments. Atomicity comes from a per-showtime mutex: a
// transition checks and applies the whole seat set under one critical
// section, so partial application is impossible.
type SeatStateStore struct {
	mu        sync.Mutex
	showtimes map[int64]*showtimeStates
}

type showtimeStates struct {
	mu    sync.Mutex
	seats map[int64]*domain.SeatState
}

func NewSeatStateStore() *SeatStateStore {
	return &SeatStateStore{showtimes: make(map[int64]*showtimeStates)}
}

func (s *SeatStateStore) bucket(showtimeID int64, create bool) *showtimeStates {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.showtimes[showtimeID]
	if !ok && create {
		b = &showtimeStates{seats: make(map[int64]*domain.SeatState)}
		s.showtimes[showtimeID] = b
	}

	return b
}

func (s *SeatStateStore) Initialize(ctx context.Context, showtimeID, roomID int64, seatIDs []int64) error {
	const op = "memory.SeatStateStore.Initialize"

	b := s.bucket(showtimeID, true)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.seats) > 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrAlreadyInitialized)
	}

	for _, sid := range seatIDs {
		b.seats[sid] = &domain.SeatState{
			ShowtimeID: showtimeID,
			SeatID:     sid,
			RoomID:     roomID,
			Status:     domain.SeatAvailable,
		}
	}

	return nil
}

func (s *SeatStateStore) States(ctx context.Context, showtimeID int64, now time.Time) ([]domain.SeatState, error) {
	b := s.bucket(showtimeID, false)
	if b == nil {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.SeatState, 0, len(b.seats))
	for _, st := range b.seats {
		cp := *st
		// lazy expiry read: report, do not mutate
		if cp.Effective(now) == domain.SeatAvailable && cp.Status == domain.SeatReserved {
			cp.Status = domain.SeatAvailable
			cp.HoldID = nil
			cp.HoldExpiresAt = nil
		}
		out = append(out, cp)
	}

	return out, nil
}

func (s *SeatStateStore) TryTransition(
	ctx context.Context,
	showtimeID int64,
	seatIDs []int64,
	t repository.Transition,
) error {
	const op = "memory.SeatStateStore.TryTransition"

	if len(seatIDs) == 0 {
		return nil
	}

	b := s.bucket(showtimeID, false)
	if b == nil {
		return fmt.Errorf("%s: %w", op, &repository.MissingSeatStateError{SeatIDs: seatIDs})
	}

	now := time.Now()

	allowed := make(map[domain.SeatStatus]bool, len(t.From))
	for _, st := range t.From {
		allowed[st] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// First pass: validate the whole set. Nothing is mutated until every
	// seat qualifies.
	var missing []int64
	conflict := &repository.SeatConflictError{Statuses: make(map[int64]domain.SeatStatus)}
	var eligible []*domain.SeatState

	for _, sid := range seatIDs {
		st, ok := b.seats[sid]
		if !ok {
			missing = append(missing, sid)
			continue
		}

		effective := st.Effective(now)

		if t.RequireHold != uuid.Nil {
			if st.Status != domain.SeatReserved ||
				st.HoldID == nil || *st.HoldID != t.RequireHold ||
				effective != domain.SeatReserved {
				return fmt.Errorf("%s: %w", op, repository.ErrHoldExpired)
			}
		}

		if t.RequireOrder != "" {
			// only rows still bound to the order move; others are skipped
			if st.OrderID == nil || *st.OrderID != t.RequireOrder {
				continue
			}
		}

		if !allowed[effective] {
			conflict.SeatIDs = append(conflict.SeatIDs, sid)
			conflict.Statuses[sid] = effective
			continue
		}

		eligible = append(eligible, st)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", op, &repository.MissingSeatStateError{SeatIDs: missing})
	}

	if len(conflict.SeatIDs) > 0 {
		return fmt.Errorf("%s: %w", op, conflict)
	}

	// Second pass: apply to all.
	for _, st := range eligible {
		st.Status = t.To
		st.HoldID = nil
		st.HoldExpiresAt = nil
		st.OrderID = nil

		switch t.To {
		case domain.SeatReserved:
			hid := t.HoldID
			exp := now.Add(t.HoldTTL)
			st.HoldID = &hid
			st.HoldExpiresAt = &exp
		case domain.SeatBooked:
			oid := t.OrderID
			st.OrderID = &oid
		}
	}

	return nil
}

func (s *SeatStateStore) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	buckets := make([]*showtimeStates, 0, len(s.showtimes))
	for _, b := range s.showtimes {
		buckets = append(buckets, b)
	}
	s.mu.Unlock()

	var released int64
	for _, b := range buckets {
		b.mu.Lock()
		for _, st := range b.seats {
			if st.Status == domain.SeatReserved &&
				st.HoldExpiresAt != nil && !st.HoldExpiresAt.After(now) {
				st.Status = domain.SeatAvailable
				st.HoldID = nil
				st.HoldExpiresAt = nil
				released++
			}
		}
		b.mu.Unlock()
	}

	return released, nil
}

func (s *SeatStateStore) Teardown(ctx context.Context, showtimeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.showtimes, showtimeID)

	return nil
}
