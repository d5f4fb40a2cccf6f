package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
)

type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]*domain.Ticket)}
}

func (s *TicketStore) Create(ctx context.Context, t *domain.Ticket) error {
	const op = "memory.TicketStore.Create"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[t.OrderID]; ok {
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}

	cp := cloneTicket(t)
	s.tickets[t.OrderID] = &cp

	return nil
}

func (s *TicketStore) Get(ctx context.Context, orderID string) (*domain.Ticket, error) {
	const op = "memory.TicketStore.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[orderID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	cp := cloneTicket(t)

	return &cp, nil
}

func (s *TicketStore) ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.Buyer.Email == email {
			out = append(out, cloneTicket(t))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *TicketStore) MarkCompleted(ctx context.Context, orderID string, at time.Time) error {
	const op = "memory.TicketStore.MarkCompleted"

	return s.mark(op, orderID, []domain.TicketStatus{domain.TicketPendingPayment},
		func(t *domain.Ticket) {
			t.Status = domain.TicketCompleted
			t.ConfirmedAt = &at
		})
}

func (s *TicketStore) MarkCancelled(ctx context.Context, orderID, reason string, at time.Time) error {
	const op = "memory.TicketStore.MarkCancelled"

	return s.mark(op, orderID,
		[]domain.TicketStatus{domain.TicketPendingPayment, domain.TicketCompleted},
		func(t *domain.Ticket) {
			t.Status = domain.TicketCancelled
			t.CancelledAt = &at
			t.CancelReason = reason
		})
}

func (s *TicketStore) MarkUsed(ctx context.Context, orderID string, at time.Time) error {
	const op = "memory.TicketStore.MarkUsed"

	return s.mark(op, orderID, []domain.TicketStatus{domain.TicketCompleted},
		func(t *domain.Ticket) {
			t.Status = domain.TicketUsed
			t.UsedAt = &at
		})
}

func (s *TicketStore) Delete(ctx context.Context, orderID string) error {
	const op = "memory.TicketStore.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[orderID]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	delete(s.tickets, orderID)

	return nil
}

func (s *TicketStore) CountActiveByShowtime(ctx context.Context, showtimeID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, t := range s.tickets {
		if t.ShowtimeID == showtimeID && t.Status != domain.TicketCancelled {
			n++
		}
	}

	return n, nil
}

func (s *TicketStore) mark(op, orderID string, from []domain.TicketStatus, apply func(*domain.Ticket)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[orderID]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	for _, st := range from {
		if t.Status == st {
			apply(t)
			return nil
		}
	}

	return fmt.Errorf("%s: ticket is %s: %w", op, t.Status, repository.ErrStateViolation)
}

func cloneTicket(t *domain.Ticket) domain.Ticket {
	cp := *t
	cp.SeatIDs = append([]int64(nil), t.SeatIDs...)
	cp.FoodLines = append([]domain.FoodLine(nil), t.FoodLines...)
	return cp
}
