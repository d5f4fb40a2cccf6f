package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository/memory"
)

type fixture struct {
	svc        *Service
	seatStates *memory.SeatStateStore
	tickets    *memory.TicketStore
	showtimes  *memory.ShowtimeStore
	catalog    *memory.CatalogStore
	showtimeID int64
}

func newFixture(t *testing.T, paymentWindow time.Duration) *fixture {
	t.Helper()

	f := &fixture{
		seatStates: memory.NewSeatStateStore(),
		tickets:    memory.NewTicketStore(),
		showtimes:  memory.NewShowtimeStore(),
		catalog:    memory.NewCatalogStore(),
	}

	f.catalog.SeedSeats(
		domain.Seat{ID: 1, RoomID: 1, Name: "A1", PriceCents: 1000},
		domain.Seat{ID: 2, RoomID: 1, Name: "A2", PriceCents: 1000},
		domain.Seat{ID: 3, RoomID: 1, Name: "A3", PriceCents: 1500},
		domain.Seat{ID: 4, RoomID: 2, Name: "B1", PriceCents: 2000},
	)
	f.catalog.SeedFoods(
		domain.Food{ID: 10, Name: "popcorn", PriceCents: 500, Available: true},
		domain.Food{ID: 11, Name: "soda", PriceCents: 300, Available: false},
	)
	f.catalog.SeedDiscounts(
		domain.Discount{
			ID: 20, Code: "TEN", Percent: 10, Active: true,
			DayStart: time.Now().Add(-time.Hour),
			DayEnd:   time.Now().Add(time.Hour),
		},
		domain.Discount{
			ID: 21, Code: "OLD", Percent: 50, Active: true,
			DayStart: time.Now().Add(-48 * time.Hour),
			DayEnd:   time.Now().Add(-24 * time.Hour),
		},
	)

	ctx := context.Background()

	id, err := f.showtimes.Create(ctx, &domain.Showtime{
		MovieID: 1, CinemaID: 1, RoomID: 1,
		ShowDate: time.Now(), StartsAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, f.seatStates.Initialize(ctx, id, 1, []int64{1, 2, 3}))
	f.showtimeID = id

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = New(log, f.seatStates, f.tickets, f.showtimes, f.catalog, nil, nil, Config{
		PaymentWindow: paymentWindow,
	})

	return f
}

func (f *fixture) createRequest(method domain.PaymentMethod, seatIDs ...int64) CreateRequest {
	return CreateRequest{
		ShowtimeID:    f.showtimeID,
		SeatIDs:       seatIDs,
		Buyer:         domain.BuyerInfo{FullName: "Jane Doe", Email: "jane@example.com"},
		PaymentMethod: method,
	}
}

func (f *fixture) seatStatus(t *testing.T, seatID int64) domain.SeatStatus {
	t.Helper()

	states, err := f.seatStates.States(context.Background(), f.showtimeID, time.Now())
	require.NoError(t, err)
	for _, st := range states {
		if st.SeatID == seatID {
			return st.Effective(time.Now())
		}
	}
	t.Fatalf("seat %d has no state", seatID)
	return ""
}

func TestCreateCashBooksSeatsImmediately(t *testing.T) {
	f := newFixture(t, 15*time.Minute)

	tk, err := f.svc.Create(context.Background(), f.createRequest(domain.PaymentCash, 1, 2))
	require.NoError(t, err)

	assert.Equal(t, domain.TicketPendingPayment, tk.Status)
	assert.Nil(t, tk.HoldID)
	assert.Equal(t, int64(2000), tk.TotalCents)
	assert.NotEmpty(t, tk.OrderID)

	assert.Equal(t, domain.SeatBooked, f.seatStatus(t, 1))
	assert.Equal(t, domain.SeatBooked, f.seatStatus(t, 2))
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 3))
}

func TestCreateStripeHoldsSeats(t *testing.T) {
	f := newFixture(t, 15*time.Minute)

	tk, err := f.svc.Create(context.Background(), f.createRequest(domain.PaymentStripe, 1))
	require.NoError(t, err)

	assert.Equal(t, domain.TicketPendingPayment, tk.Status)
	require.NotNil(t, tk.HoldID)
	assert.Equal(t, domain.SeatReserved, f.seatStatus(t, 1))
}

func TestCreateConflictLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 1, 2))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 2, 3))
	require.ErrorIs(t, err, ErrSeatsUnavailable)

	var conflict *SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []int64{2}, conflict.SeatIDs)

	// The losing request must not have claimed seat 3.
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 3))
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	const attempts = 32

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 1, 2, 3))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSeatsUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, wins)
}

func TestPricingWithFoodAndDiscount(t *testing.T) {
	f := newFixture(t, 15*time.Minute)

	req := f.createRequest(domain.PaymentCash, 1, 3) // 1000 + 1500
	req.FoodLines = []FoodLineInput{{FoodID: 10, Quantity: 2}}
	discountID := int64(20)
	req.DiscountID = &discountID

	tk, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(2500), tk.SeatTotalCents)
	assert.Equal(t, int64(1000), tk.FoodTotalCents)
	assert.Equal(t, int64(350), tk.DiscountCents) // 10% of 3500
	assert.Equal(t, int64(3150), tk.TotalCents)
	require.Len(t, tk.FoodLines, 1)
	assert.Equal(t, int64(500), tk.FoodLines[0].PriceCents)
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	req := f.createRequest(domain.PaymentCash, 4)
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrSeatRoomMismatch)

	req = f.createRequest(domain.PaymentCash, 1, 99)
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrSeatNotFound)

	req = f.createRequest(domain.PaymentCash, 1, 1)
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidInput)

	req = f.createRequest(domain.PaymentCash, 1)
	req.FoodLines = []FoodLineInput{{FoodID: 11, Quantity: 1}}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrFoodUnavailable)

	expired := int64(21)
	req = f.createRequest(domain.PaymentCash, 1)
	req.DiscountID = &expired
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrDiscountInactive)

	// None of the rejected requests may have touched seat state.
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 1))
}

func TestPaymentConfirmedCompletesOrder(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	tk, err := f.svc.Create(ctx, f.createRequest(domain.PaymentStripe, 1, 2))
	require.NoError(t, err)

	require.NoError(t, f.svc.OnPaymentConfirmed(ctx, tk.OrderID))

	got, err := f.svc.Get(ctx, tk.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCompleted, got.Status)
	assert.NotNil(t, got.ConfirmedAt)

	assert.Equal(t, domain.SeatBooked, f.seatStatus(t, 1))
	assert.Equal(t, domain.SeatBooked, f.seatStatus(t, 2))

	// Retried webhook delivery is a no-op.
	require.NoError(t, f.svc.OnPaymentConfirmed(ctx, tk.OrderID))
}

func TestPaymentConfirmedAfterHoldExpiry(t *testing.T) {
	f := newFixture(t, -time.Second) // hold is born expired
	ctx := context.Background()

	tk, err := f.svc.Create(ctx, f.createRequest(domain.PaymentStripe, 1))
	require.NoError(t, err)

	err = f.svc.OnPaymentConfirmed(ctx, tk.OrderID)
	assert.ErrorIs(t, err, ErrHoldExpired)

	got, err := f.svc.Get(ctx, tk.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCancelled, got.Status)

	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 1))
}

func TestPaymentFailedReleasesSeats(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	tk, err := f.svc.Create(ctx, f.createRequest(domain.PaymentStripe, 1, 2))
	require.NoError(t, err)

	require.NoError(t, f.svc.OnPaymentFailed(ctx, tk.OrderID, "card declined"))

	got, err := f.svc.Get(ctx, tk.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCancelled, got.Status)
	assert.Equal(t, "card declined", got.CancelReason)

	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 1))
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 2))

	// Idempotent.
	require.NoError(t, f.svc.OnPaymentFailed(ctx, tk.OrderID, "card declined"))
}

func TestCancelReleasesBookedSeats(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	tk, err := f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 1, 2))
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, tk.OrderID, "changed plans"))

	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 1))
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, 2))

	// Seats can be resold right away.
	_, err = f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 1, 2))
	require.NoError(t, err)

	err = f.svc.Cancel(ctx, tk.OrderID, "again")
	assert.ErrorIs(t, err, ErrTicketCancelled)
}

func TestMarkUsedStateMachine(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	tk, err := f.svc.Create(ctx, f.createRequest(domain.PaymentStripe, 1))
	require.NoError(t, err)

	// Not paid yet.
	err = f.svc.MarkUsed(ctx, tk.OrderID)
	assert.ErrorIs(t, err, ErrTicketNotComplete)

	require.NoError(t, f.svc.OnPaymentConfirmed(ctx, tk.OrderID))
	require.NoError(t, f.svc.MarkUsed(ctx, tk.OrderID))

	// Second scan at the door must be rejected.
	err = f.svc.MarkUsed(ctx, tk.OrderID)
	assert.ErrorIs(t, err, ErrTicketUsed)

	err = f.svc.MarkUsed(ctx, "TK-missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestDeleteOnlyCancelledTickets(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	tk, err := f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 1))
	require.NoError(t, err)

	err = f.svc.Delete(ctx, tk.OrderID)
	assert.ErrorIs(t, err, ErrTicketNotDeletable)

	require.NoError(t, f.svc.Cancel(ctx, tk.OrderID, ""))
	require.NoError(t, f.svc.Delete(ctx, tk.OrderID))

	_, err = f.svc.Get(ctx, tk.OrderID)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestListByEmail(t *testing.T) {
	f := newFixture(t, 15*time.Minute)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 1))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.createRequest(domain.PaymentCash, 2))
	require.NoError(t, err)

	ts, err := f.svc.ListByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Len(t, ts, 2)

	ts, err = f.svc.ListByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, ts)

	_, err = f.svc.ListByEmail(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
