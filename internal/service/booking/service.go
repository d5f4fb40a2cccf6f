package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository"
	redisx "github.com/HuyVanh/my-backend-api-movie/internal/redis"
	redisrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/redis"
)

type Config struct {
	// PaymentWindow bounds how long seats stay reserved while an online
	// payment is in flight.
	PaymentWindow time.Duration
}

// Service drives the ticket lifecycle and keeps it consistent with seat
// state. Writes are ordered so a crash between the two stores leaves seats
// recoverable (held seats expire, cancelled tickets release their seats on
// retry) rather than sold twice.
type Service struct {
	log        *slog.Logger
	seatStates repository.SeatStateStore
	tickets    repository.TicketStore
	showtimes  repository.ShowtimeStore
	catalog    repository.CatalogStore
	cache      *redisrepo.Cache
	events     *redisx.BookingPubSub
	cfg        Config
}

func New(
	log *slog.Logger,
	seatStates repository.SeatStateStore,
	tickets repository.TicketStore,
	showtimes repository.ShowtimeStore,
	catalog repository.CatalogStore,
	cache *redisrepo.Cache,
	events *redisx.BookingPubSub,
	cfg Config,
) *Service {
	return &Service{
		log:        log,
		seatStates: seatStates,
		tickets:    tickets,
		showtimes:  showtimes,
		catalog:    catalog,
		cache:      cache,
		events:     events,
		cfg:        cfg,
	}
}

type FoodLineInput struct {
	FoodID   int64
	Quantity int
}

type CreateRequest struct {
	ShowtimeID    int64
	SeatIDs       []int64
	FoodLines     []FoodLineInput
	DiscountID    *int64
	Buyer         domain.BuyerInfo
	PaymentMethod domain.PaymentMethod
}

// Create books the requested seats and writes the ticket. Cash orders book
// seats outright; online orders place a payment-window hold that the payment
// callbacks later promote or release.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Ticket, error) {
	const op = "booking.Service.Create"

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	st, err := s.showtimes.Get(ctx, req.ShowtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShowtimeNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()

	seatTotal, err := s.priceSeats(ctx, st, req.SeatIDs)
	if err != nil {
		return nil, err
	}

	foodLines, foodTotal, err := s.priceFood(ctx, req.FoodLines)
	if err != nil {
		return nil, err
	}

	discountCents, err := s.applyDiscount(ctx, req.DiscountID, seatTotal+foodTotal, now)
	if err != nil {
		return nil, err
	}

	t := &domain.Ticket{
		OrderID:        newOrderID(),
		ShowtimeID:     st.ID,
		MovieID:        st.MovieID,
		CinemaID:       st.CinemaID,
		RoomID:         st.RoomID,
		Buyer:          req.Buyer,
		SeatIDs:        req.SeatIDs,
		FoodLines:      foodLines,
		DiscountID:     req.DiscountID,
		PaymentMethod:  req.PaymentMethod,
		Status:         domain.TicketPendingPayment,
		SeatTotalCents: seatTotal,
		FoodTotalCents: foodTotal,
		DiscountCents:  discountCents,
		TotalCents:     seatTotal + foodTotal - discountCents,
		CreatedAt:      now,
	}

	var transition repository.Transition
	switch req.PaymentMethod {
	case domain.PaymentCash:
		// Cash is settled at the counter, the seats are sold immediately.
		transition = repository.Transition{
			From:    []domain.SeatStatus{domain.SeatAvailable},
			To:      domain.SeatBooked,
			OrderID: t.OrderID,
		}
	case domain.PaymentStripe:
		holdID := uuid.New()
		t.HoldID = &holdID
		transition = repository.Transition{
			From:    []domain.SeatStatus{domain.SeatAvailable},
			To:      domain.SeatReserved,
			HoldID:  holdID,
			HoldTTL: s.cfg.PaymentWindow,
		}
	}

	if err := s.seatStates.TryTransition(ctx, st.ID, req.SeatIDs, transition); err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.translate(err))
	}

	if err := s.tickets.Create(ctx, t); err != nil {
		// Give the seats back before surfacing the failure; held seats would
		// expire on their own but booked cash seats would stay sold.
		s.releaseSeats(ctx, t)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, st.ID)
	s.publish(ctx, redisx.EventBookingCreated, t.OrderID, st.ID)

	return t, nil
}

// OnPaymentConfirmed promotes a pending online order to completed, booking
// its held seats. Safe to call more than once for the same order.
func (s *Service) OnPaymentConfirmed(ctx context.Context, orderID string) error {
	const op = "booking.Service.OnPaymentConfirmed"

	t, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}

	switch t.Status {
	case domain.TicketCompleted, domain.TicketUsed:
		return nil
	case domain.TicketCancelled:
		return ErrTicketCancelled
	}

	if t.HoldID != nil {
		err := s.seatStates.TryTransition(ctx, t.ShowtimeID, t.SeatIDs, repository.Transition{
			From:        []domain.SeatStatus{domain.SeatReserved},
			To:          domain.SeatBooked,
			RequireHold: *t.HoldID,
			OrderID:     t.OrderID,
		})
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrHoldExpired):
			// Either the hold lapsed, or a previous attempt already booked
			// the seats and died before completing the ticket.
			booked, berr := s.seatsBoundToOrder(ctx, t)
			if berr != nil {
				return fmt.Errorf("%s: %w", op, berr)
			}
			if !booked {
				if cerr := s.tickets.MarkCancelled(ctx, t.OrderID, "payment arrived after the hold expired", time.Now()); cerr != nil {
					s.log.Error("cancel after expired hold failed", "order_id", t.OrderID, "error", cerr)
				}
				s.invalidate(ctx, t.ShowtimeID)
				return ErrHoldExpired
			}
		default:
			return fmt.Errorf("%s: %w", op, s.translate(err))
		}
	}

	if err := s.tickets.MarkCompleted(ctx, t.OrderID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrStateViolation) {
			// A concurrent confirmation won the conditional update.
			if cur, gerr := s.tickets.Get(ctx, t.OrderID); gerr == nil &&
				(cur.Status == domain.TicketCompleted || cur.Status == domain.TicketUsed) {
				return nil
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, t.ShowtimeID)
	s.publish(ctx, redisx.EventPaymentConfirmed, t.OrderID, t.ShowtimeID)

	return nil
}

// OnPaymentFailed cancels a pending online order and releases its seats.
// Safe to call more than once for the same order.
func (s *Service) OnPaymentFailed(ctx context.Context, orderID, reason string) error {
	const op = "booking.Service.OnPaymentFailed"

	t, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}

	switch t.Status {
	case domain.TicketCancelled:
		return nil
	case domain.TicketCompleted, domain.TicketUsed:
		return ErrTicketNotPending
	}

	if reason == "" {
		reason = "payment failed"
	}

	if err := s.tickets.MarkCancelled(ctx, t.OrderID, reason, time.Now()); err != nil {
		if errors.Is(err, repository.ErrStateViolation) {
			if cur, gerr := s.tickets.Get(ctx, t.OrderID); gerr == nil && cur.Status == domain.TicketCancelled {
				return nil
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.releaseSeats(ctx, t)
	s.invalidate(ctx, t.ShowtimeID)
	s.publish(ctx, redisx.EventBookingCancelled, t.OrderID, t.ShowtimeID)

	return nil
}

// Cancel voids a pending or completed ticket and frees its seats.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) error {
	const op = "booking.Service.Cancel"

	t, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}

	switch t.Status {
	case domain.TicketCancelled:
		return ErrTicketCancelled
	case domain.TicketUsed:
		return ErrTicketUsed
	}

	if reason == "" {
		reason = "cancelled by request"
	}

	if err := s.tickets.MarkCancelled(ctx, t.OrderID, reason, time.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	// The ticket is the source of truth. Once it reads cancelled, seat
	// release can be retried by the sweeper or a later cancel attempt, so a
	// failure here is logged rather than surfaced.
	s.releaseSeats(ctx, t)
	s.invalidate(ctx, t.ShowtimeID)
	s.publish(ctx, redisx.EventBookingCancelled, t.OrderID, t.ShowtimeID)

	return nil
}

// MarkUsed records a completed ticket as consumed at the door.
func (s *Service) MarkUsed(ctx context.Context, orderID string) error {
	const op = "booking.Service.MarkUsed"

	err := s.tickets.MarkUsed(ctx, orderID, time.Now())
	if err == nil {
		return nil
	}

	if errors.Is(err, repository.ErrNotFound) {
		return ErrTicketNotFound
	}

	if errors.Is(err, repository.ErrStateViolation) {
		t, gerr := s.tickets.Get(ctx, orderID)
		if gerr != nil {
			return fmt.Errorf("%s: %w", op, gerr)
		}
		switch t.Status {
		case domain.TicketUsed:
			return ErrTicketUsed
		case domain.TicketCancelled:
			return ErrTicketCancelled
		default:
			return ErrTicketNotComplete
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// Delete removes a ticket record entirely. Only cancelled tickets qualify;
// everything else still owns seats or money.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	const op = "booking.Service.Delete"

	t, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if t.Status != domain.TicketCancelled {
		return ErrTicketNotDeletable
	}

	if err := s.tickets.Delete(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.Ticket, error) {
	const op = "booking.Service.Get"

	if orderID == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrInvalidInput)
	}

	t, err := s.tickets.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	const op = "booking.Service.ListByEmail"

	if email == "" {
		return nil, fmt.Errorf("%w: empty email", ErrInvalidInput)
	}

	ts, err := s.tickets.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ts, nil
}

func validateCreate(req CreateRequest) error {
	if req.ShowtimeID <= 0 {
		return fmt.Errorf("%w: missing showtime", ErrInvalidInput)
	}
	if len(req.SeatIDs) == 0 {
		return fmt.Errorf("%w: no seats selected", ErrInvalidInput)
	}

	seen := make(map[int64]struct{}, len(req.SeatIDs))
	for _, id := range req.SeatIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate seat %d", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	if req.Buyer.FullName == "" || req.Buyer.Email == "" {
		return fmt.Errorf("%w: buyer name and email are required", ErrInvalidInput)
	}

	switch req.PaymentMethod {
	case domain.PaymentCash, domain.PaymentStripe:
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, req.PaymentMethod)
	}

	for _, fl := range req.FoodLines {
		if fl.Quantity <= 0 {
			return fmt.Errorf("%w: food %d has non-positive quantity", ErrInvalidInput, fl.FoodID)
		}
	}

	return nil
}

func (s *Service) priceSeats(ctx context.Context, st *domain.Showtime, seatIDs []int64) (int64, error) {
	const op = "booking.Service.priceSeats"

	seats, err := s.catalog.SeatsByIDs(ctx, seatIDs)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	byID := make(map[int64]domain.Seat, len(seats))
	for _, seat := range seats {
		byID[seat.ID] = seat
	}

	var total int64
	for _, id := range seatIDs {
		seat, ok := byID[id]
		if !ok {
			return 0, fmt.Errorf("%w: seat %d", ErrSeatNotFound, id)
		}
		if seat.RoomID != st.RoomID {
			return 0, fmt.Errorf("%w: seat %d", ErrSeatRoomMismatch, id)
		}
		total += seat.PriceCents
	}

	return total, nil
}

func (s *Service) priceFood(ctx context.Context, lines []FoodLineInput) ([]domain.FoodLine, int64, error) {
	const op = "booking.Service.priceFood"

	if len(lines) == 0 {
		return nil, 0, nil
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.FoodID)
	}

	foods, err := s.catalog.FoodByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	byID := make(map[int64]domain.Food, len(foods))
	for _, f := range foods {
		byID[f.ID] = f
	}

	out := make([]domain.FoodLine, 0, len(lines))
	var total int64
	for _, l := range lines {
		f, ok := byID[l.FoodID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: food %d", ErrFoodNotFound, l.FoodID)
		}
		if !f.Available {
			return nil, 0, fmt.Errorf("%w: food %d", ErrFoodUnavailable, l.FoodID)
		}
		out = append(out, domain.FoodLine{
			FoodID:     f.ID,
			Quantity:   l.Quantity,
			PriceCents: f.PriceCents,
		})
		total += f.PriceCents * int64(l.Quantity)
	}

	return out, total, nil
}

func (s *Service) applyDiscount(ctx context.Context, discountID *int64, baseCents int64, now time.Time) (int64, error) {
	const op = "booking.Service.applyDiscount"

	if discountID == nil {
		return 0, nil
	}

	d, err := s.catalog.DiscountByID(ctx, *discountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrDiscountNotFound
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if !d.ActiveAt(now) {
		return 0, ErrDiscountInactive
	}

	return baseCents * int64(d.Percent) / 100, nil
}

// releaseSeats frees whatever seats the ticket still owns. Rows that moved
// on already are left alone.
func (s *Service) releaseSeats(ctx context.Context, t *domain.Ticket) {
	err := s.seatStates.TryTransition(ctx, t.ShowtimeID, t.SeatIDs, repository.Transition{
		From:         []domain.SeatStatus{domain.SeatBooked},
		To:           domain.SeatAvailable,
		RequireOrder: t.OrderID,
	})
	if err != nil && !errors.Is(err, repository.ErrSeatsUnavailable) {
		s.log.Error("seat release by order failed", "order_id", t.OrderID, "error", err)
	}

	if t.HoldID == nil {
		return
	}

	err = s.seatStates.TryTransition(ctx, t.ShowtimeID, t.SeatIDs, repository.Transition{
		From:        []domain.SeatStatus{domain.SeatReserved},
		To:          domain.SeatAvailable,
		RequireHold: *t.HoldID,
	})
	if err != nil && !errors.Is(err, repository.ErrHoldExpired) && !errors.Is(err, repository.ErrSeatsUnavailable) {
		s.log.Error("seat release by hold failed", "order_id", t.OrderID, "error", err)
	}
}

// seatsBoundToOrder reports whether every seat on the ticket is booked under
// its order id.
func (s *Service) seatsBoundToOrder(ctx context.Context, t *domain.Ticket) (bool, error) {
	states, err := s.seatStates.States(ctx, t.ShowtimeID, time.Now())
	if err != nil {
		return false, err
	}

	byID := make(map[int64]domain.SeatState, len(states))
	for _, st := range states {
		byID[st.SeatID] = st
	}

	for _, id := range t.SeatIDs {
		st, ok := byID[id]
		if !ok || st.Status != domain.SeatBooked || st.OrderID == nil || *st.OrderID != t.OrderID {
			return false, nil
		}
	}

	return true, nil
}

func (s *Service) invalidate(ctx context.Context, showtimeID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateShowtime(ctx, showtimeID); err != nil {
		s.log.Warn("seat cache invalidation failed", "showtime_id", showtimeID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event, orderID string, showtimeID int64) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, orderID, showtimeID); err != nil {
		s.log.Warn("event publish failed", "event", event, "order_id", orderID, "error", err)
	}
}

func (s *Service) translate(err error) error {
	var conflict *repository.SeatConflictError
	if errors.As(err, &conflict) {
		return &SeatConflictError{SeatIDs: conflict.SeatIDs, Statuses: conflict.Statuses}
	}

	var missing *repository.MissingSeatStateError
	if errors.As(err, &missing) {
		return fmt.Errorf("%w: seats %v", ErrSeatStateGap, missing.SeatIDs)
	}

	if errors.Is(err, repository.ErrHoldExpired) {
		return ErrHoldExpired
	}

	return err
}

// newOrderID mirrors the ticket numbering scheme used at the counter:
// a TK prefix, the creation time in milliseconds, and a random suffix.
func newOrderID() string {
	return fmt.Sprintf("TK%d%03d", time.Now().UnixMilli(), rand.Intn(1000))
}
