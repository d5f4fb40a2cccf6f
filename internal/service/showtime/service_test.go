package showtime

import (
	"context"
	"io"
	"log/slog"
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
}

func newFixture(t *testing.T) *fixture {
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
		domain.Seat{ID: 3, RoomID: 2, Name: "B1", PriceCents: 1500},
	)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = New(log, f.showtimes, f.seatStates, f.tickets, f.catalog, nil)

	return f
}

func validShowtime(roomID int64) *domain.Showtime {
	return &domain.Showtime{
		MovieID:  1,
		CinemaID: 1,
		RoomID:   roomID,
		ShowDate: time.Now(),
		StartsAt: time.Now().Add(time.Hour),
	}
}

func TestCreateSeedsSeatGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, validShowtime(1))
	require.NoError(t, err)

	states, err := f.seatStates.States(ctx, id, time.Now())
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, st := range states {
		assert.Equal(t, domain.SeatAvailable, st.Status)
	}
}

func TestCreateRejectsEmptyRoom(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), validShowtime(99))
	assert.ErrorIs(t, err, ErrRoomHasNoSeats)

	// The rejected showtime must not exist.
	_, err = f.svc.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRoomChangeRebuildsGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, validShowtime(1))
	require.NoError(t, err)

	st := validShowtime(2)
	st.ID = id
	require.NoError(t, f.svc.Update(ctx, st))

	states, err := f.seatStates.States(ctx, id, time.Now())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, int64(3), states[0].SeatID)
}

func TestUpdateRoomChangeGuardedByTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, validShowtime(1))
	require.NoError(t, err)

	require.NoError(t, f.tickets.Create(ctx, &domain.Ticket{
		OrderID:    "TK1",
		ShowtimeID: id,
		Status:     domain.TicketCompleted,
		CreatedAt:  time.Now(),
	}))

	st := validShowtime(2)
	st.ID = id
	err = f.svc.Update(ctx, st)
	assert.ErrorIs(t, err, ErrHasActiveTickets)

	// Timing changes without a room move stay allowed.
	st = validShowtime(1)
	st.ID = id
	st.StartsAt = time.Now().Add(2 * time.Hour)
	require.NoError(t, f.svc.Update(ctx, st))
}

func TestDeleteGuardedByTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, validShowtime(1))
	require.NoError(t, err)

	require.NoError(t, f.tickets.Create(ctx, &domain.Ticket{
		OrderID:    "TK1",
		ShowtimeID: id,
		Status:     domain.TicketPendingPayment,
		CreatedAt:  time.Now(),
	}))

	err = f.svc.Delete(ctx, id)
	assert.ErrorIs(t, err, ErrHasActiveTickets)

	// A cancelled ticket no longer blocks deletion.
	require.NoError(t, f.tickets.MarkCancelled(ctx, "TK1", "test", time.Now()))
	require.NoError(t, f.svc.Delete(ctx, id))

	_, err = f.svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	states, err := f.seatStates.States(ctx, id, time.Now())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestDeleteMissingShowtime(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Delete(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}
