package reservation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuyVanh/my-backend-api-movie/internal/domain"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository/memory"
)

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
}

func (l *stubLimiter) Allow(ctx context.Context, suffix string) (bool, int64, time.Duration, error) {
	return l.allowed, 0, l.retryAfter, nil
}

func newService(t *testing.T, limiter RateLimiter) (*Service, *memory.SeatStateStore) {
	t.Helper()

	seatStates := memory.NewSeatStateStore()
	require.NoError(t, seatStates.Initialize(context.Background(), 1, 1, []int64{1, 2, 3}))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(log, seatStates, nil, limiter, Config{
		DefaultHoldTTL: 15 * time.Minute,
		MinHoldTTL:     time.Minute,
		MaxHoldTTL:     30 * time.Minute,
	})

	return svc, seatStates
}

func seatStatus(t *testing.T, s *memory.SeatStateStore, seatID int64) domain.SeatStatus {
	t.Helper()

	states, err := s.States(context.Background(), 1, time.Now())
	require.NoError(t, err)
	for _, st := range states {
		if st.SeatID == seatID {
			return st.Status
		}
	}
	t.Fatalf("seat %d has no state", seatID)
	return ""
}

func TestReserveAndConfirm(t *testing.T) {
	svc, seatStates := newService(t, nil)
	ctx := context.Background()

	hold, err := svc.Reserve(ctx, 1, []int64{1, 2}, 5*time.Minute, "")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, hold.ID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), hold.ExpiresAt, 10*time.Second)

	require.NoError(t, svc.Confirm(ctx, 1, []int64{1, 2}, hold.ID, "TK1"))
	assert.Equal(t, domain.SeatBooked, seatStatus(t, seatStates, 1))
}

func TestReserveClampsTTL(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	// Below the minimum: clamped up.
	hold, err := svc.Reserve(ctx, 1, []int64{1}, time.Second, "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), hold.ExpiresAt, 10*time.Second)

	// Zero: the default applies.
	hold, err = svc.Reserve(ctx, 1, []int64{2}, 0, "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), hold.ExpiresAt, 10*time.Second)

	// Above the maximum: clamped down.
	hold, err = svc.Reserve(ctx, 1, []int64{3}, 2*time.Hour, "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), hold.ExpiresAt, 10*time.Second)
}

func TestReserveConflict(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, []int64{1, 2}, 0, "")
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, 1, []int64{2, 3}, 0, "")
	require.ErrorIs(t, err, ErrSeatsUnavailable)

	var conflict *SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []int64{2}, conflict.SeatIDs)
}

func TestConfirmWithForeignHold(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, []int64{1}, 0, "")
	require.NoError(t, err)

	err = svc.Confirm(ctx, 1, []int64{1}, uuid.New(), "TK1")
	assert.ErrorIs(t, err, ErrHoldExpired)
}

func TestCancelIsRetrySafe(t *testing.T) {
	svc, seatStates := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, []int64{1, 2}, 0, "")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, 1, []int64{1, 2}))
	assert.Equal(t, domain.SeatAvailable, seatStatus(t, seatStates, 1))

	// Retrying a cancel that already went through is not an error.
	require.NoError(t, svc.Cancel(ctx, 1, []int64{1, 2}))
}

func TestReserveRateLimited(t *testing.T) {
	svc, _ := newService(t, &stubLimiter{allowed: false, retryAfter: time.Minute})

	_, err := svc.Reserve(context.Background(), 1, []int64{1}, 0, "ip:1.2.3.4")
	assert.ErrorIs(t, err, ErrRateLimited)

	// An empty limit key skips the limiter.
	_, err = svc.Reserve(context.Background(), 1, []int64{1}, 0, "")
	assert.NoError(t, err)
}

func TestExpireCountsReleases(t *testing.T) {
	seatStates := memory.NewSeatStateStore()
	require.NoError(t, seatStates.Initialize(context.Background(), 1, 1, []int64{1, 2}))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(log, seatStates, nil, nil, Config{
		DefaultHoldTTL: -time.Second, // holds are born expired
		MinHoldTTL:     -time.Second,
		MaxHoldTTL:     time.Hour,
	})

	_, err := svc.Reserve(context.Background(), 1, []int64{1, 2}, 0, "")
	require.NoError(t, err)

	n, err := svc.Expire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
